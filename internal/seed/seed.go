// Package seed loads reference data (companies, hotels and rooms) from YAML
// into the store.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"hotelbooking/internal/models"
	"hotelbooking/internal/records"
	"hotelbooking/internal/service"
	"hotelbooking/internal/store"
)

type File struct {
	Companies []models.Company `yaml:"companies"`
	Hotels    []Hotel          `yaml:"hotels"`
}

// Hotel is a location with its rooms inlined.
type Hotel struct {
	models.Location `yaml:",inline"`
	Rooms           []models.Room `yaml:"rooms"`
}

type Result struct {
	Created int
	Updated int
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) Validate() error {
	if len(f.Companies) == 0 && len(f.Hotels) == 0 {
		return errors.New("seed file is empty")
	}
	companies := make(map[string]bool, len(f.Companies))
	for i, c := range f.Companies {
		if strings.TrimSpace(c.ID) == "" {
			return fmt.Errorf("companies[%d]: id is required", i)
		}
		companies[c.ID] = true
	}
	for i, h := range f.Hotels {
		if strings.TrimSpace(h.ID) == "" {
			return fmt.Errorf("hotels[%d]: id is required", i)
		}
		if strings.Contains(h.ID, "#") {
			return fmt.Errorf("hotels[%d]: id must not contain '#'", i)
		}
		if h.CompanyID != "" && !companies[h.CompanyID] {
			return fmt.Errorf("hotel %s: unknown company %q", h.ID, h.CompanyID)
		}
		seen := make(map[string]bool, len(h.Rooms))
		for j, r := range h.Rooms {
			if strings.TrimSpace(r.Number) == "" || strings.Contains(r.Number, "#") {
				return fmt.Errorf("hotel %s rooms[%d]: invalid number %q", h.ID, j, r.Number)
			}
			if seen[r.Number] {
				return fmt.Errorf("hotel %s: duplicate room %s", h.ID, r.Number)
			}
			seen[r.Number] = true
		}
	}
	return nil
}

// Apply upserts every record of f. Rooms always take the hotel id of the
// hotel they are listed under.
func Apply(ctx context.Context, st store.Store, f *File) (Result, error) {
	var res Result
	put := func(rec store.Record) error {
		existing, err := st.Get(ctx, rec.PK(), rec.SK())
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("get %s: %w", rec.PK(), err)
		}
		if err := st.Put(ctx, rec); err != nil {
			return fmt.Errorf("put %s: %w", rec.PK(), err)
		}
		if existing != nil {
			res.Updated++
		} else {
			res.Created++
		}
		return nil
	}

	for _, c := range f.Companies {
		if err := put(records.CompanyToRecord(c)); err != nil {
			return res, err
		}
	}
	for _, h := range f.Hotels {
		if err := put(records.LocationToRecord(h.Location)); err != nil {
			return res, err
		}
		for _, r := range h.Rooms {
			r.LocationID = h.ID
			if err := put(records.RoomToRecord(r)); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

// Invalidator drops cached reference listings.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// InvalidateCache drops every listing Apply may have changed.
func InvalidateCache(ctx context.Context, c Invalidator) error {
	if err := c.Invalidate(ctx, service.CacheKeyCompanies, service.CacheKeyLocations); err != nil {
		return err
	}
	return c.InvalidatePrefix(ctx, service.CacheKeyRooms(""))
}
