// Package seed populates reference data: the default governor, the 9 axes and
// 80 standards of the framework, one committee per axis and city settings.
package seed

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/config"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/models"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/service"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/store"
)

//go:embed reference.yaml
var referenceYAML []byte

type KPI struct {
	Name   string  `yaml:"name" json:"name"`
	Target float64 `yaml:"target" json:"target"`
	Unit   string  `yaml:"unit" json:"unit,omitempty"`
}

type StandardRef struct {
	Code             string `yaml:"code"`
	Title            string `yaml:"title"`
	Description      string `yaml:"description"`
	RequiredEvidence string `yaml:"required_evidence"`
	KPIs             []KPI  `yaml:"kpis"`
}

type AxisRef struct {
	Code        string        `yaml:"code"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Standards   []StandardRef `yaml:"standards"`
}

type Reference struct {
	Axes []AxisRef `yaml:"axes"`
}

// StandardCount returns the number of standards across all axes.
func (r *Reference) StandardCount() int {
	n := 0
	for _, a := range r.Axes {
		n += len(a.Standards)
	}
	return n
}

// LoadReference parses the embedded framework table.
func LoadReference() (*Reference, error) {
	var ref Reference
	if err := yaml.Unmarshal(referenceYAML, &ref); err != nil {
		return nil, fmt.Errorf("parse reference table: %w", err)
	}
	return &ref, nil
}

// Stats reports what a seeding pass changed.
type Stats struct {
	GovernorCreated   bool `json:"governor_created"`
	AxesCreated       int  `json:"axes_created"`
	StandardsCreated  int  `json:"standards_created"`
	StandardsUpdated  int  `json:"standards_updated"`
	CommitteesCreated int  `json:"committees_created"`
	SettingsCreated   bool `json:"settings_created"`
	TablesCleared     int  `json:"tables_cleared,omitempty"`
}

type Seeder struct {
	store    store.Store
	entities *service.EntityService
	admin    config.SeedConfig
	ref      *Reference
	logger   *zap.Logger
}

func New(s store.Store, entities *service.EntityService, admin config.SeedConfig, logger *zap.Logger) (*Seeder, error) {
	ref, err := LoadReference()
	if err != nil {
		return nil, err
	}
	return &Seeder{store: s, entities: entities, admin: admin, ref: ref, logger: logger.Named("seed")}, nil
}

// Run performs every idempotent seeding step.
func (s *Seeder) Run(ctx context.Context) (Stats, error) {
	var st Stats
	created, err := s.SeedDefaultGovernorIfNeeded(ctx)
	if err != nil {
		return st, err
	}
	st.GovernorCreated = created
	if err := s.seedFramework(ctx, &st); err != nil {
		return st, err
	}
	s.logger.Info("seeding finished",
		zap.Bool("governor_created", st.GovernorCreated),
		zap.Int("axes_created", st.AxesCreated),
		zap.Int("standards_created", st.StandardsCreated),
		zap.Int("standards_updated", st.StandardsUpdated),
	)
	return st, nil
}

// SeedDefaultGovernorIfNeeded creates the documented default governor when no
// team member exists. It shares the bootstrap lock with createFirstGovernor so
// only one of them can populate the table. It never opens a session.
func (s *Seeder) SeedDefaultGovernorIfNeeded(ctx context.Context) (bool, error) {
	_, created, err := s.entities.CreateIfEmpty(ctx, models.EntityTeamMember, store.Record{
		"full_name":   s.admin.AdminName,
		"national_id": s.admin.AdminNationalID,
		"email":       s.admin.AdminEmail,
		"password":    s.admin.AdminPassword,
		"role":        models.RoleGovernor,
		"status":      models.StatusActive,
	}, "")
	if err != nil {
		return false, fmt.Errorf("seed default governor: %w", err)
	}
	if !created {
		return false, nil
	}
	s.logger.Warn("default governor created; change its password",
		zap.String("national_id", s.admin.AdminNationalID))
	return true, nil
}

// SeedAxesAndStandardsIfNeeded creates the framework when no axis exists, then
// aligns every standard with the reference table. It never deletes.
func (s *Seeder) SeedAxesAndStandardsIfNeeded(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.seedFramework(ctx, &st)
	return st, err
}

// ClearAxesAndStandardsAndReseed drops the framework tables and rebuilds them.
func (s *Seeder) ClearAxesAndStandardsAndReseed(ctx context.Context) (Stats, error) {
	var st Stats
	for _, table := range []string{models.EntityAxis, models.EntityStandard} {
		if err := s.store.Clear(ctx, table); err != nil {
			return st, fmt.Errorf("clear %s: %w", table, err)
		}
		st.TablesCleared++
	}
	err := s.seedFramework(ctx, &st)
	return st, err
}

// ClearLocalDataAndReseed wipes every table except TeamMember and reseeds.
func (s *Seeder) ClearLocalDataAndReseed(ctx context.Context) (Stats, error) {
	var st Stats
	for _, table := range models.Names() {
		if table == models.EntityTeamMember {
			continue
		}
		if err := s.store.Clear(ctx, table); err != nil {
			return st, fmt.Errorf("clear %s: %w", table, err)
		}
		st.TablesCleared++
	}
	run, err := s.Run(ctx)
	run.TablesCleared = st.TablesCleared
	return run, err
}

func (s *Seeder) seedFramework(ctx context.Context, st *Stats) error {
	axes, err := s.store.List(ctx, models.EntityAxis, "order")
	if err != nil {
		return err
	}
	axisIDs := map[string]string{}
	for _, a := range axes {
		code, _ := a["code"].(string)
		id, _ := a["id"].(string)
		axisIDs[code] = id
	}
	if len(axes) == 0 {
		for i, ref := range s.ref.Axes {
			rec, err := s.entities.Create(ctx, models.EntityAxis, store.Record{
				"code":        ref.Code,
				"name":        ref.Name,
				"description": ref.Description,
				"order":       i + 1,
			}, "")
			if err != nil {
				return fmt.Errorf("seed axis %s: %w", ref.Code, err)
			}
			axisIDs[ref.Code] = rec["id"].(string)
			st.AxesCreated++
		}
	}

	if err := s.syncStandards(ctx, axisIDs, st); err != nil {
		return err
	}
	if err := s.seedCommittees(ctx, st); err != nil {
		return err
	}
	return s.seedSettings(ctx, st)
}

func (s *Seeder) syncStandards(ctx context.Context, axisIDs map[string]string, st *Stats) error {
	existing, err := s.store.List(ctx, models.EntityStandard, "")
	if err != nil {
		return err
	}
	byCode := make(map[string]store.Record, len(existing))
	for _, rec := range existing {
		if code, _ := rec["code"].(string); code != "" {
			byCode[code] = rec
		}
	}

	for i, axis := range s.ref.Axes {
		axisID, ok := axisIDs[axis.Code]
		if !ok {
			rec, err := s.entities.Create(ctx, models.EntityAxis, store.Record{
				"code": axis.Code, "name": axis.Name, "description": axis.Description, "order": i + 1,
			}, "")
			if err != nil {
				return fmt.Errorf("seed axis %s: %w", axis.Code, err)
			}
			axisID = rec["id"].(string)
			axisIDs[axis.Code] = axisID
			st.AxesCreated++
		}
		for _, ref := range axis.Standards {
			kpis, err := json.Marshal(ref.KPIs)
			if err != nil {
				return err
			}
			want := store.Record{
				"title":             ref.Title,
				"description":       ref.Description,
				"required_evidence": ref.RequiredEvidence,
				"kpis":              string(kpis),
			}
			current, found := byCode[ref.Code]
			if !found {
				rec := store.Record{
					"code":                  ref.Code,
					"axis_id":               axisID,
					"axis_code":             axis.Code,
					"status":                "not_started",
					"completion_percentage": 0,
				}
				for k, v := range want {
					rec[k] = v
				}
				if _, err := s.entities.Create(ctx, models.EntityStandard, rec, ""); err != nil {
					return fmt.Errorf("seed standard %s: %w", ref.Code, err)
				}
				st.StandardsCreated++
				continue
			}
			patch := store.Record{}
			for k, v := range want {
				if current[k] != v {
					patch[k] = v
				}
			}
			if len(patch) == 0 {
				continue
			}
			id, _ := current["id"].(string)
			if _, err := s.entities.Update(ctx, models.EntityStandard, id, patch); err != nil {
				return fmt.Errorf("sync standard %s: %w", ref.Code, err)
			}
			st.StandardsUpdated++
		}
	}
	return nil
}

func (s *Seeder) seedCommittees(ctx context.Context, st *Stats) error {
	existing, err := s.store.Filter(ctx, models.EntityCommittee, nil, "", 1)
	if err != nil || len(existing) > 0 {
		return err
	}
	for _, axis := range s.ref.Axes {
		_, err := s.entities.Create(ctx, models.EntityCommittee, store.Record{
			"name":        axis.Name + " Committee",
			"description": "Follows up the standards of axis " + axis.Code + ".",
			"status":      models.StatusActive,
		}, "")
		if err != nil {
			return fmt.Errorf("seed committee for axis %s: %w", axis.Code, err)
		}
		st.CommitteesCreated++
	}
	return nil
}

func (s *Seeder) seedSettings(ctx context.Context, st *Stats) error {
	existing, err := s.store.Filter(ctx, models.EntitySettings, nil, "", 1)
	if err != nil || len(existing) > 0 {
		return err
	}
	if _, err := s.entities.Create(ctx, models.EntitySettings, store.Record{"city_name": "Healthy City"}, ""); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	st.SettingsCreated = true
	return nil
}
