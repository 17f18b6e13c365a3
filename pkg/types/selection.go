package types

// SelectionKind discriminates the selection state.
type SelectionKind string

const (
	SelectionNone  SelectionKind = "none"
	SelectionTower SelectionKind = "tower"
	SelectionArea  SelectionKind = "area"
)

// Selection is exactly one of none, tower(id) or area(id).
type Selection struct {
	Kind SelectionKind `json:"kind"`
	ID   string        `json:"id,omitempty"`
}

// NoSelection is the empty selection.
var NoSelection = Selection{Kind: SelectionNone}

// TowerID returns the selected tower id, if a tower is selected.
func (s Selection) TowerID() (string, bool) {
	if s.Kind == SelectionTower {
		return s.ID, true
	}
	return "", false
}

// AreaID returns the selected area id, if an area is selected.
func (s Selection) AreaID() (string, bool) {
	if s.Kind == SelectionArea {
		return s.ID, true
	}
	return "", false
}

// IsNone reports whether nothing is selected.
func (s Selection) IsNone() bool {
	return s.Kind == "" || s.Kind == SelectionNone
}
