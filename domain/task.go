package domain

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/bytedance/sonic"
)

// Board columns. Tasks always live in exactly one of these.
const (
	CategoryToDo          = "to-do"
	CategoryInProgress    = "in-progress"
	CategoryAwaitFeedback = "await-feedback"
	CategoryDone          = "done"
)

// Categories lists the board columns in display order.
var Categories = []string{CategoryToDo, CategoryInProgress, CategoryAwaitFeedback, CategoryDone}

// categoryLabels maps column ids to their on-screen headings.
var categoryLabels = map[string]string{
	CategoryToDo:          "To-Do",
	CategoryInProgress:    "In Progress",
	CategoryAwaitFeedback: "Await Feedback",
	CategoryDone:          "Done",
}

// Task priorities.
const (
	PriorityUrgent = "urgent"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Badge values label the task type on its card.
const (
	BadgeTechnicalTask = "Technical Task"
	BadgeUserStory     = "User Story"
)

// Assignee is a point-in-time copy of a contact taken when the task was
// assigned. Later contact edits do not propagate here.
type Assignee struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Subtask is a single checklist entry on a task.
type Subtask struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

// Subtasks is an id-keyed set of checklist entries. Older records stored
// a plain array instead of a map; UnmarshalJSON accepts both shapes and
// normalizes arrays to synthetic positional ids.
type Subtasks map[string]Subtask

func (s *Subtasks) UnmarshalJSON(data []byte) error {
	var asMap map[string]Subtask
	if err := sonic.ConfigStd.Unmarshal(data, &asMap); err == nil {
		*s = asMap
		return nil
	}
	var asList []Subtask
	if err := sonic.ConfigStd.Unmarshal(data, &asList); err != nil {
		return err
	}
	out := make(Subtasks, len(asList))
	for i, st := range asList {
		out[fmt.Sprintf("subtask%d", i+1)] = st
	}
	*s = out
	return nil
}

var positionalSubtaskID = regexp.MustCompile(`^subtask[0-9]+$`)

// StoredAsArray reports whether the ids were synthesized from the array
// shape. The store then holds integer-indexed entries at this path, so a
// per-id patch would graft a phantom entry next to them instead of
// updating the real one; callers must rewrite the whole node.
func (s Subtasks) StoredAsArray() bool {
	for id := range s {
		if positionalSubtaskID.MatchString(id) {
			return true
		}
	}
	return false
}

// Task represents a single board card.
type Task struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	DueDate     string              `json:"dueDate"`
	Priority    string              `json:"priority"`
	Badge       string              `json:"badge"`
	Category    string              `json:"category"`
	AssignedTo  map[string]Assignee `json:"assignedTo,omitempty"`
	Subtasks    Subtasks            `json:"subtasks,omitempty"`
}

// ValidCategory reports whether s names a board column.
func ValidCategory(s string) bool {
	_, ok := categoryLabels[s]
	return ok
}

func validPriority(s string) bool {
	return s == PriorityUrgent || s == PriorityMedium || s == PriorityLow
}

func validBadge(s string) bool {
	return s == BadgeTechnicalTask || s == BadgeUserStory
}

// Validate checks the task form fields, reporting every offending field.
func (t Task) Validate() FieldErrors {
	errs := FieldErrors{}
	if t.Title == "" {
		errs["title"] = "title is required"
	}
	if t.DueDate == "" {
		errs["dueDate"] = "due date is required"
	}
	if !validPriority(t.Priority) {
		errs["priority"] = "priority must be urgent, medium or low"
	}
	if !validBadge(t.Badge) {
		errs["badge"] = "unknown task type"
	}
	if !ValidCategory(t.Category) {
		errs["category"] = "unknown board column"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Progress returns the completed and total subtask counts.
func (t Task) Progress() (done, total int) {
	for _, st := range t.Subtasks {
		total++
		if st.Completed {
			done++
		}
	}
	return done, total
}

// ProgressLabel renders the card progress as "done/total". A task without
// subtasks reads "0/0".
func (t Task) ProgressLabel() string {
	done, total := t.Progress()
	return fmt.Sprintf("%d/%d", done, total)
}

// AssignContacts builds the assignedTo snapshot map from the selected
// contacts, keyed contact1..contactN in the given order.
func AssignContacts(contacts []Contact) map[string]Assignee {
	if len(contacts) == 0 {
		return nil
	}
	assigned := make(map[string]Assignee, len(contacts))
	for i, c := range contacts {
		assigned[fmt.Sprintf("contact%d", i+1)] = Assignee{Name: c.Name, Color: c.Color}
	}
	return assigned
}

// BoardColumn is one rendered column of the board view.
type BoardColumn struct {
	Category string `json:"category"`
	Label    string `json:"label"`
	Tasks    []Task `json:"tasks"`
}

// GroupByCategory splits tasks into the four fixed board columns,
// preserving the incoming order within each column. Tasks with an unknown
// category are dropped rather than invented a fifth column.
func GroupByCategory(tasks []Task) []BoardColumn {
	byCategory := make(map[string][]Task, len(Categories))
	for _, t := range tasks {
		if !ValidCategory(t.Category) {
			continue
		}
		byCategory[t.Category] = append(byCategory[t.Category], t)
	}
	columns := make([]BoardColumn, 0, len(Categories))
	for _, cat := range Categories {
		columns = append(columns, BoardColumn{
			Category: cat,
			Label:    categoryLabels[cat],
			Tasks:    byCategory[cat],
		})
	}
	return columns
}

// SortSubtaskIDs returns the subtask ids in a stable order for rendering.
func SortSubtaskIDs(s Subtasks) []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
