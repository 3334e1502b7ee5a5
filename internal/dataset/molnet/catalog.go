// Package molnet loads the MoleculeNet benchmark datasets, featurizes them
// into fingerprint stores and wraps the splits into pair or triplet datasets.
package molnet

import (
	"sort"
	"strings"

	"github.com/turtacn/CrossSiameseNet/pkg/errors"
)

// Spec describes one downloadable dataset.
type Spec struct {
	Name        string
	File        string
	SmilesCol   string
	Tasks       []string
	Regression  bool
	Description string
}

var tox21Tasks = []string{
	"NR-AR", "NR-AR-LBD", "NR-AhR", "NR-Aromatase", "NR-ER", "NR-ER-LBD",
	"NR-PPAR-gamma", "SR-ARE", "SR-ATAD5", "SR-HSE", "SR-MMP", "SR-p53",
}

var catalog = map[string]Spec{
	"hiv": {
		Name: "hiv", File: "HIV.csv", SmilesCol: "smiles",
		Tasks:       []string{"HIV_active"},
		Description: "inhibition of HIV replication",
	},
	"delaney": {
		Name: "delaney", File: "delaney-processed.csv", SmilesCol: "smiles",
		Tasks:       []string{"measured log solubility in mols per litre"},
		Regression:  true,
		Description: "aqueous solubility (ESOL)",
	},
	"lipo": {
		Name: "lipo", File: "Lipophilicity.csv", SmilesCol: "smiles",
		Tasks:       []string{"exp"},
		Regression:  true,
		Description: "octanol/water distribution coefficient",
	},
	"freesolv": {
		Name: "freesolv", File: "SAMPL.csv", SmilesCol: "smiles",
		Tasks:       []string{"expt"},
		Regression:  true,
		Description: "hydration free energy",
	},
	"tox21": {
		Name: "tox21", File: "tox21.csv.gz", SmilesCol: "smiles",
		Tasks:       tox21Tasks,
		Description: "toxicity on 12 nuclear-receptor and stress-response assays",
	},
}

// Catalog returns every base dataset spec sorted by name.
func Catalog() []Spec {
	out := make([]Spec, 0, len(catalog))
	for _, s := range catalog {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Tox21Tasks returns the task names accepted after "tox21_".
func Tox21Tasks() []string { return append([]string(nil), tox21Tasks...) }

// Resolve maps a dataset name to its spec.  "tox21_<task>" selects a single
// Tox21 task.  Resolution never touches the network.
func Resolve(name string) (Spec, error) {
	if s, ok := catalog[name]; ok && name != "tox21" {
		return s, nil
	}
	if strings.HasPrefix(name, "tox21") {
		s := catalog["tox21"]
		idx := strings.Index(name, "_")
		if idx < 0 {
			return Spec{}, errors.New(errors.CodeUnsupportedDataset, "tox21 requires a task suffix").
				WithDetail("valid tasks: " + strings.Join(tox21Tasks, ", "))
		}
		task := name[idx+1:]
		for _, t := range tox21Tasks {
			if t == task {
				s.Name = name
				s.Tasks = []string{task}
				return s, nil
			}
		}
		return Spec{}, errors.Newf(errors.CodeUnsupportedDataset, "unknown tox21 task %q", task).
			WithDetail("valid tasks: " + strings.Join(tox21Tasks, ", "))
	}
	return Spec{}, errors.Newf(errors.CodeUnsupportedDataset, "unsupported dataset %q", name).
		WithDetail("supported: hiv, delaney, lipo, freesolv, tox21_<task>")
}
