package download

import (
	"fmt"

	"github.com/thecodenomad/neurobik/pkg/config"
	"github.com/thecodenomad/neurobik/pkg/confirm"
)

// ItemKind labels an item for display and dispatch.
type ItemKind string

const (
	KindModel ItemKind = "model"
	KindOCI   ItemKind = "oci"
)

// Item is a labelled handle on a configured model or image, handed to the
// selection surface and back.
type Item struct {
	Kind ItemKind
	Name string
}

func (i Item) String() string {
	return fmt.Sprintf("%s: %s", i.Kind, i.Name)
}

// SelectCandidates computes the items still eligible for action: models whose
// per-item completion marker does not exist, and every OCI item
// unconditionally (image state is not locally inspected, so a re-pull or
// rebuild is always offered). Config order is preserved; the only I/O is
// marker existence checks.
func SelectCandidates(cfg *config.Config, store confirm.Store) []Item {
	var items []Item
	for _, m := range cfg.Models {
		if !store.Exists(m.ConfirmationFile) {
			items = append(items, Item{Kind: KindModel, Name: m.ModelName})
		}
	}
	for _, o := range cfg.OCI {
		items = append(items, Item{Kind: KindOCI, Name: o.Image})
	}
	return items
}
