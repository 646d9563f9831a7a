package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/fleetcheck/internal/api"
	"github.com/google/uuid"
)

var (
	ErrEmptyTitle         = errors.New("title must not be empty")
	ErrUnknownItem        = errors.New("item does not belong to checklist")
	ErrInvalidResult      = errors.New("invalid result status")
	ErrExecutionCompleted = errors.New("execution already completed")
	ErrMissingResults     = errors.New("required items have no result")
)

// ResultStatus is the outcome recorded for one checklist item.
type ResultStatus string

const (
	ResultOK            ResultStatus = "OK"
	ResultDefect        ResultStatus = "DEFECT"
	ResultNotApplicable ResultStatus = "NOT_APPLICABLE"
)

func ParseResultStatus(s string) (ResultStatus, error) {
	switch r := ResultStatus(strings.ToUpper(strings.TrimSpace(s))); r {
	case ResultOK, ResultDefect, ResultNotApplicable:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidResult, s)
}

type ChecklistItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Position    int    `json:"position"`
	Required    bool   `json:"required"`
}

// Checklist is a template of items inspected on vehicles of one type.
type Checklist struct {
	SyncMeta
	Title         string          `json:"title"`
	VehicleTypeID string          `json:"vehicle_type_id,omitempty"`
	Items         []ChecklistItem `json:"items"`
}

// NewChecklist builds a checklist whose items are positioned in the given
// order. Every title is required; an item is mandatory unless its title ends
// with "?".
func NewChecklist(title, vehicleTypeID string, itemTitles []string, now time.Time) (Checklist, error) {
	if strings.TrimSpace(title) == "" {
		return Checklist{}, ErrEmptyTitle
	}
	items := make([]ChecklistItem, 0, len(itemTitles))
	for i, t := range itemTitles {
		t = strings.TrimSpace(t)
		if t == "" {
			return Checklist{}, fmt.Errorf("item %d: %w", i+1, ErrEmptyTitle)
		}
		optional := strings.HasSuffix(t, "?")
		items = append(items, ChecklistItem{
			ID:       uuid.NewString(),
			Title:    strings.TrimSuffix(t, "?"),
			Position: i + 1,
			Required: !optional,
		})
	}
	return Checklist{SyncMeta: NewSyncMeta(now), Title: title, VehicleTypeID: vehicleTypeID, Items: items}, nil
}

func (c Checklist) Item(id string) (ChecklistItem, bool) {
	for _, it := range c.Items {
		if it.ID == id {
			return it, true
		}
	}
	return ChecklistItem{}, false
}

func (c Checklist) IsConflictWith(other Checklist) bool {
	return c.SyncMeta.ConflictsWith(other.SyncMeta)
}

func (c Checklist) WithUpdatedSync(status SyncStatus, lastModified time.Time, version int64) Checklist {
	c.SyncMeta = c.withSync(status, lastModified, version)
	c.Items = slices.Clone(c.Items)
	return c
}

func (c Checklist) ToDTO() api.ChecklistDTO {
	items := make([]api.ChecklistItemDTO, len(c.Items))
	for i, it := range c.Items {
		items[i] = api.ChecklistItemDTO(it)
	}
	return api.ChecklistDTO{Meta: metaToDTO(c.SyncMeta), Title: c.Title, VehicleTypeID: c.VehicleTypeID, Items: items}
}

func ChecklistFromDTO(d api.ChecklistDTO) Checklist {
	items := make([]ChecklistItem, len(d.Items))
	for i, it := range d.Items {
		items[i] = ChecklistItem(it)
	}
	return Checklist{SyncMeta: metaFromDTO(d.Meta), Title: d.Title, VehicleTypeID: d.VehicleTypeID, Items: items}
}

type ItemResult struct {
	ItemID     string       `json:"item_id"`
	Status     ResultStatus `json:"status"`
	Notes      string       `json:"notes,omitempty"`
	PhotoKey   string       `json:"photo_key,omitempty"`
	RecordedAt time.Time    `json:"recorded_at"`
}

// ChecklistExecution is one inspection of a vehicle against a checklist.
type ChecklistExecution struct {
	SyncMeta
	ChecklistID string       `json:"checklist_id"`
	VehicleID   string       `json:"vehicle_id"`
	Inspector   string       `json:"inspector"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Results     []ItemResult `json:"results"`
}

func NewChecklistExecution(checklistID, vehicleID, inspector string, now time.Time) ChecklistExecution {
	meta := NewSyncMeta(now)
	return ChecklistExecution{
		SyncMeta:    meta,
		ChecklistID: checklistID,
		VehicleID:   vehicleID,
		Inspector:   inspector,
		StartedAt:   meta.CreatedAt,
		Results:     []ItemResult{},
	}
}

func (e ChecklistExecution) Completed() bool { return e.CompletedAt != nil }

func (e ChecklistExecution) Result(itemID string) (ItemResult, bool) {
	for _, r := range e.Results {
		if r.ItemID == itemID {
			return r, true
		}
	}
	return ItemResult{}, false
}

// HasDefects reports whether any recorded item failed the inspection.
func (e ChecklistExecution) HasDefects() bool {
	for _, r := range e.Results {
		if r.Status == ResultDefect {
			return true
		}
	}
	return false
}

// WithResult returns a copy with the result for r.ItemID added or replaced.
// The record is marked as locally modified.
func (e ChecklistExecution) WithResult(checklist Checklist, r ItemResult, now time.Time) (ChecklistExecution, error) {
	if e.Completed() {
		return e, ErrExecutionCompleted
	}
	if _, ok := checklist.Item(r.ItemID); !ok {
		return e, fmt.Errorf("%w: %s", ErrUnknownItem, r.ItemID)
	}
	r.RecordedAt = now.UTC()

	results := slices.Clone(e.Results)
	idx := slices.IndexFunc(results, func(x ItemResult) bool { return x.ItemID == r.ItemID })
	if idx >= 0 {
		if r.PhotoKey == "" {
			r.PhotoKey = results[idx].PhotoKey
		}
		results[idx] = r
	} else {
		results = append(results, r)
	}

	e.Results = results
	e.SyncMeta = e.Touched(now)
	return e, nil
}

// Complete closes the execution. All required checklist items must have a
// recorded result.
func (e ChecklistExecution) Complete(checklist Checklist, now time.Time) (ChecklistExecution, error) {
	if e.Completed() {
		return e, ErrExecutionCompleted
	}
	var missing []string
	for _, it := range checklist.Items {
		if !it.Required {
			continue
		}
		if _, ok := e.Result(it.ID); !ok {
			missing = append(missing, it.Title)
		}
	}
	if len(missing) > 0 {
		return e, fmt.Errorf("%w: %s", ErrMissingResults, strings.Join(missing, ", "))
	}

	at := now.UTC()
	e.CompletedAt = &at
	e.Results = slices.Clone(e.Results)
	e.SyncMeta = e.Touched(now)
	return e, nil
}

func (e ChecklistExecution) IsConflictWith(other ChecklistExecution) bool {
	return e.SyncMeta.ConflictsWith(other.SyncMeta)
}

func (e ChecklistExecution) WithUpdatedSync(status SyncStatus, lastModified time.Time, version int64) ChecklistExecution {
	e.SyncMeta = e.withSync(status, lastModified, version)
	e.Results = slices.Clone(e.Results)
	return e
}

func (e ChecklistExecution) ToDTO() api.ChecklistExecutionDTO {
	results := make([]api.ItemResultDTO, len(e.Results))
	for i, r := range e.Results {
		results[i] = api.ItemResultDTO{
			ItemID:     r.ItemID,
			Status:     string(r.Status),
			Notes:      r.Notes,
			PhotoKey:   r.PhotoKey,
			RecordedAt: r.RecordedAt,
		}
	}
	return api.ChecklistExecutionDTO{
		Meta:        metaToDTO(e.SyncMeta),
		ChecklistID: e.ChecklistID,
		VehicleID:   e.VehicleID,
		Inspector:   e.Inspector,
		StartedAt:   e.StartedAt,
		CompletedAt: e.CompletedAt,
		Results:     results,
	}
}

func ChecklistExecutionFromDTO(d api.ChecklistExecutionDTO) ChecklistExecution {
	results := make([]ItemResult, len(d.Results))
	for i, r := range d.Results {
		results[i] = ItemResult{
			ItemID:     r.ItemID,
			Status:     ResultStatus(r.Status),
			Notes:      r.Notes,
			PhotoKey:   r.PhotoKey,
			RecordedAt: r.RecordedAt,
		}
	}
	return ChecklistExecution{
		SyncMeta:    metaFromDTO(d.Meta),
		ChecklistID: d.ChecklistID,
		VehicleID:   d.VehicleID,
		Inspector:   d.Inspector,
		StartedAt:   d.StartedAt,
		CompletedAt: d.CompletedAt,
		Results:     results,
	}
}
