package importer

import (
	"context"
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/packmind/internal/model"
	"github.com/sells-group/packmind/internal/store"
)

//go:embed seed_items.yaml
var seedItemsYAML []byte

type seedItem struct {
	Name     string `yaml:"name"`
	Priority string `yaml:"priority"`
	Category string `yaml:"category"`
}

// DefaultItems returns the starter checklist every new user receives.
func DefaultItems() ([]model.Item, error) {
	var seeds []seedItem
	if err := yaml.Unmarshal(seedItemsYAML, &seeds); err != nil {
		return nil, eris.Wrap(err, "importer: parse seed items")
	}
	items := make([]model.Item, len(seeds))
	for i, s := range seeds {
		items[i] = model.Item{
			Name:     s.Name,
			Priority: model.Priority(s.Priority),
			Category: s.Category,
			Active:   true,
		}
	}
	return items, nil
}

// SeedDefaultItems creates any default items the user does not already
// have. Idempotent by item name.
func SeedDefaultItems(ctx context.Context, st store.Store, userID int64) (int, error) {
	defaults, err := DefaultItems()
	if err != nil {
		return 0, err
	}
	existing, err := st.ListItems(ctx, userID, false)
	if err != nil {
		return 0, eris.Wrap(err, "importer: list existing items")
	}
	have := make(map[string]bool, len(existing))
	for _, item := range existing {
		have[item.Name] = true
	}

	created := 0
	for _, item := range defaults {
		if have[item.Name] {
			continue
		}
		item.UserID = userID
		if _, err := st.CreateItem(ctx, item); err != nil {
			return created, eris.Wrapf(err, "importer: seed item %q", item.Name)
		}
		created++
	}
	return created, nil
}
