package domain

import (
	"bytes"
	"encoding/json"
	"errors"

	"golang.org/x/text/language"
)

type Category struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	NameZh string `json:"nameZh,omitempty"`
	Slug   string `json:"slug,omitempty"`
}

func (c *Category) LocalizedName(lang language.Tag) string {
	return localized(c.Name, c.NameZh, lang)
}

// CategoryRef is either a bare category id or an expanded Category.
// The catalog API returns both shapes; the JSON codec accepts either.
type CategoryRef struct {
	id       string
	expanded *Category
}

func CategoryID(id string) CategoryRef {
	return CategoryRef{id: id}
}

func ExpandedCategory(c Category) CategoryRef {
	return CategoryRef{id: c.ID, expanded: &c}
}

func (r CategoryRef) ID() string {
	return r.id
}

// Expanded returns the full category when the reference carries one.
func (r CategoryRef) Expanded() (*Category, bool) {
	return r.expanded, r.expanded != nil
}

func (r CategoryRef) IsZero() bool {
	return r.id == "" && r.expanded == nil
}

func (r CategoryRef) MarshalJSON() ([]byte, error) {
	if r.expanded != nil {
		return json.Marshal(r.expanded)
	}
	if r.id == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.id)
}

var errCategoryShape = errors.New("category must be a string id or an object")

func (r *CategoryRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*r = CategoryRef{}
		return nil
	case data[0] == '"':
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = CategoryID(id)
		return nil
	case data[0] == '{':
		var raw struct {
			Category
			MongoID string `json:"_id"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		if raw.ID == "" {
			raw.ID = raw.MongoID
		}
		*r = ExpandedCategory(raw.Category)
		return nil
	default:
		return errCategoryShape
	}
}
