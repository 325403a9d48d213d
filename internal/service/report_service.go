package service

import (
	"context"
	"math"
	"time"

	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/models"
	"github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/store"
)

type AxisSummary struct {
	AxisID            string  `json:"axis_id"`
	Code              string  `json:"code"`
	Name              string  `json:"name"`
	Standards         int     `json:"standards"`
	Completed         int     `json:"completed"`
	AverageCompletion float64 `json:"average_completion"`
}

type EvidenceSummary struct {
	Total         int            `json:"total"`
	ByStatus      map[string]int `json:"by_status"`
	ApprovalRatio float64        `json:"approval_ratio"`
}

type TaskSummary struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
	Overdue  int            `json:"overdue"`
}

type Summary struct {
	GeneratedAt       string          `json:"generated_at"`
	Axes              []AxisSummary   `json:"axes"`
	Standards         int             `json:"standards"`
	OverallCompletion float64         `json:"overall_completion"`
	Evidence          EvidenceSummary `json:"evidence"`
	Tasks             TaskSummary     `json:"tasks"`
}

type ReportService struct {
	store store.Store
	now   func() time.Time
}

func NewReportService(s store.Store) *ReportService {
	return &ReportService{store: s, now: time.Now}
}

// Summary computes per-axis completion and evidence and task counters.
func (s *ReportService) Summary(ctx context.Context) (*Summary, error) {
	axes, err := s.store.List(ctx, models.EntityAxis, "order")
	if err != nil {
		return nil, err
	}
	standards, err := s.store.List(ctx, models.EntityStandard, "code")
	if err != nil {
		return nil, err
	}
	evidence, err := s.store.List(ctx, models.EntityEvidence, "")
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.List(ctx, models.EntityTask, "")
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := &Summary{
		GeneratedAt: now.UTC().Format(time.RFC3339),
		Axes:        make([]AxisSummary, 0, len(axes)),
		Standards:   len(standards),
	}

	byAxis := map[string][]store.Record{}
	total := 0.0
	for _, st := range standards {
		axisID, _ := st["axis_id"].(string)
		byAxis[axisID] = append(byAxis[axisID], st)
		total += number(st["completion_percentage"])
	}
	if len(standards) > 0 {
		out.OverallCompletion = round2(total / float64(len(standards)))
	}
	for _, a := range axes {
		id, _ := a["id"].(string)
		code, _ := a["code"].(string)
		name, _ := a["name"].(string)
		as := AxisSummary{AxisID: id, Code: code, Name: name}
		sum := 0.0
		for _, st := range byAxis[id] {
			as.Standards++
			pct := number(st["completion_percentage"])
			sum += pct
			if status, _ := st["status"].(string); status == "completed" || status == "approved" || pct >= 100 {
				as.Completed++
			}
		}
		if as.Standards > 0 {
			as.AverageCompletion = round2(sum / float64(as.Standards))
		}
		out.Axes = append(out.Axes, as)
	}

	out.Evidence = EvidenceSummary{Total: len(evidence), ByStatus: map[string]int{}}
	for _, e := range evidence {
		out.Evidence.ByStatus[statusOf(e, "pending")]++
	}
	if len(evidence) > 0 {
		out.Evidence.ApprovalRatio = round2(float64(out.Evidence.ByStatus["approved"]) / float64(len(evidence)))
	}

	out.Tasks = TaskSummary{Total: len(tasks), ByStatus: map[string]int{}}
	for _, t := range tasks {
		status := statusOf(t, "pending")
		out.Tasks.ByStatus[status]++
		if status == "completed" || status == "cancelled" {
			continue
		}
		if dueAt, err := parseTime(t["due_date"]); err == nil && dueAt.Before(now) {
			out.Tasks.Overdue++
		}
	}
	return out, nil
}

func statusOf(r store.Record, fallback string) string {
	if s, _ := r["status"].(string); s != "" {
		return s
	}
	return fallback
}

func number(v any) float64 {
	f, _ := v.(float64)
	return f
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
