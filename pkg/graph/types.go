package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Position is a 2-D coordinate. For rendered nodes it is the top-left corner.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dimensions is the measured box of a rendered node.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Anchor is the side of a node where edges attach.
type Anchor string

const (
	AnchorTop    Anchor = "top"
	AnchorBottom Anchor = "bottom"
	AnchorLeft   Anchor = "left"
	AnchorRight  Anchor = "right"
)

// NodeRecord is a node as sent by the backend. Raw holds the full unmodified
// object so detail views never lose fields this package does not model.
type NodeRecord struct {
	NodeID   string    `json:"node_id"`
	Title    string    `json:"title"`
	NodeType string    `json:"node_type"`
	Status   string    `json:"status"`
	Support  Rating    `json:"support"`
	Position *Position `json:"position,omitempty"`
	Selected bool      `json:"selected,omitempty"`

	Raw map[string]any `json:"-"`
}

// EdgeRecord is an edge as sent by the backend.
type EdgeRecord struct {
	Source         string `json:"source"`
	Target         string `json:"target"`
	EdgeType       string `json:"edge_type"`
	CausalStrength Rating `json:"causal_strength"`
	Selected       bool   `json:"selected,omitempty"`

	Raw map[string]any `json:"-"`
}

// UnmarshalJSON decodes the typed fields and keeps the whole object in Raw.
// Identifiers may arrive as numbers or strings.
func (n *NodeRecord) UnmarshalJSON(data []byte) error {
	raw, err := decodeRaw(data)
	if err != nil {
		return err
	}
	var aux struct {
		NodeID   flexString `json:"node_id"`
		Title    string     `json:"title"`
		NodeType string     `json:"node_type"`
		Status   string     `json:"status"`
		Support  Rating     `json:"support"`
		Position *Position  `json:"position"`
		Selected bool       `json:"selected"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("decode node record: %w", err)
	}
	*n = NodeRecord{
		NodeID:   string(aux.NodeID),
		Title:    aux.Title,
		NodeType: aux.NodeType,
		Status:   aux.Status,
		Support:  aux.Support,
		Position: aux.Position,
		Selected: aux.Selected,
		Raw:      raw,
	}
	return nil
}

// MarshalJSON writes Raw back unchanged when present.
func (n NodeRecord) MarshalJSON() ([]byte, error) {
	if n.Raw != nil {
		return json.Marshal(n.Raw)
	}
	type alias NodeRecord
	return json.Marshal(alias(n))
}

// UnmarshalJSON decodes the typed fields and keeps the whole object in Raw.
func (e *EdgeRecord) UnmarshalJSON(data []byte) error {
	raw, err := decodeRaw(data)
	if err != nil {
		return err
	}
	var aux struct {
		Source         flexString `json:"source"`
		Target         flexString `json:"target"`
		EdgeType       string     `json:"edge_type"`
		CausalStrength Rating     `json:"causal_strength"`
		Selected       bool       `json:"selected"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("decode edge record: %w", err)
	}
	*e = EdgeRecord{
		Source:         string(aux.Source),
		Target:         string(aux.Target),
		EdgeType:       aux.EdgeType,
		CausalStrength: aux.CausalStrength,
		Selected:       aux.Selected,
		Raw:            raw,
	}
	return nil
}

// MarshalJSON writes Raw back unchanged when present.
func (e EdgeRecord) MarshalJSON() ([]byte, error) {
	if e.Raw != nil {
		return json.Marshal(e.Raw)
	}
	type alias EdgeRecord
	return json.Marshal(alias(e))
}

// Fields returns a shallow copy of the unmodified record. Records built in code
// (without Raw) are reconstructed from their typed fields.
func (n NodeRecord) Fields() map[string]any {
	if n.Raw != nil {
		return copyMap(n.Raw)
	}
	out := map[string]any{
		"node_id":   n.NodeID,
		"title":     n.Title,
		"node_type": n.NodeType,
		"status":    n.Status,
	}
	if v, ok := n.Support.Value(); ok {
		out["support"] = v
	}
	if n.Position != nil {
		out["position"] = map[string]any{"x": n.Position.X, "y": n.Position.Y}
	}
	return out
}

// Fields returns a shallow copy of the unmodified record.
func (e EdgeRecord) Fields() map[string]any {
	if e.Raw != nil {
		return copyMap(e.Raw)
	}
	out := map[string]any{
		"source":    e.Source,
		"target":    e.Target,
		"edge_type": e.EdgeType,
	}
	if v, ok := e.CausalStrength.Value(); ok {
		out["causal_strength"] = v
	}
	return out
}

// NodeStyle is the visual style of a rendered node.
type NodeStyle struct {
	Background   string  `json:"background,omitempty"`
	BorderColor  string  `json:"borderColor"`
	BorderWidth  float64 `json:"borderWidth"`
	BorderStyle  string  `json:"borderStyle"`
	BorderRadius float64 `json:"borderRadius"`
	Opacity      float64 `json:"opacity"`
}

// EdgeStyle is the visual style of a rendered edge.
type EdgeStyle struct {
	Stroke          string  `json:"stroke"`
	StrokeWidth     float64 `json:"strokeWidth"`
	StrokeDasharray string  `json:"strokeDasharray,omitempty"`
	Opacity         float64 `json:"opacity"`
}

// Marker is an arrowhead drawn at one end of an edge.
type Marker struct {
	Type   string `json:"type"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// NodeData carries the unmodified backend record plus display-only fields.
type NodeData struct {
	Record      map[string]any `json:"record"`
	RatingLabel string         `json:"rating_label,omitempty"`
}

// EdgeData carries the unmodified backend record plus display-only fields.
type EdgeData struct {
	Record      map[string]any `json:"record"`
	RatingLabel string         `json:"rating_label,omitempty"`
	Inverted    bool           `json:"inverted,omitempty"`
}

// RenderableNode is a node descriptor for the diagram renderer. It lives for
// one render pass only.
type RenderableNode struct {
	ID             string      `json:"id"`
	Position       Position    `json:"position"`
	Label          string      `json:"label"`
	Type           string      `json:"type"`
	Style          NodeStyle   `json:"style"`
	Selected       bool        `json:"selected"`
	Data           NodeData    `json:"data"`
	SourcePosition Anchor      `json:"sourcePosition,omitempty"`
	TargetPosition Anchor      `json:"targetPosition,omitempty"`
	Dimensions     *Dimensions `json:"dimensions,omitempty"`
}

// RenderableEdge is an edge descriptor for the diagram renderer.
type RenderableEdge struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Source      string    `json:"source"`
	Target      string    `json:"target"`
	MarkerEnd   *Marker   `json:"markerEnd,omitempty"`
	MarkerStart *Marker   `json:"markerStart,omitempty"`
	Style       EdgeStyle `json:"style"`
	Selected    bool      `json:"selected"`
	Data        EdgeData  `json:"data"`
}

// Export is the whole-network payload of GET /graph.
type Export struct {
	Nodes     []NodeRecord `json:"nodes"`
	Edges     []EdgeRecord `json:"edges"`
	Version   string       `json:"commongraph_version,omitempty"`
	Timestamp string       `json:"timestamp,omitempty"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("identifier must be a string or number: %w", err)
	}
	*f = flexString(num.String())
	return nil
}

func decodeRaw(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return raw, nil
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Rating is a support or causal-strength value: a letter grade, a number on
// the 1-5 scale, or absent.
type Rating struct {
	letter  string
	score   float64
	numeric bool
	present bool
}

// LetterRating builds a rating from a grade such as "A".
func LetterRating(grade string) Rating {
	return Rating{letter: grade, present: true}
}

// NumericRating builds a rating on the 1-5 scale.
func NumericRating(score float64) Rating {
	return Rating{score: score, numeric: true, present: true}
}

// Present reports whether the backend sent a value.
func (r Rating) Present() bool { return r.present }

// Score returns the numeric value when the rating is numeric.
func (r Rating) Score() (float64, bool) { return r.score, r.present && r.numeric }

// Letter returns the raw string value when the rating is not numeric.
func (r Rating) Letter() (string, bool) { return r.letter, r.present && !r.numeric }

// Value returns the rating as it would be encoded in JSON.
func (r Rating) Value() (any, bool) {
	if !r.present {
		return nil, false
	}
	if r.numeric {
		return r.score, true
	}
	return r.letter, true
}

func (r Rating) String() string {
	switch {
	case !r.present:
		return ""
	case r.numeric:
		return strconv.FormatFloat(r.score, 'f', -1, 64)
	default:
		return r.letter
	}
}

// UnmarshalJSON accepts null, a number, a numeric string, or a letter grade.
func (r *Rating) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = Rating{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*r = Rating{}
			return nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			*r = NumericRating(f)
			return nil
		}
		*r = LetterRating(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		// Unrecognized shapes degrade to "absent" rather than failing the record.
		*r = Rating{}
		return nil
	}
	*r = NumericRating(f)
	return nil
}

// MarshalJSON encodes the rating in the shape it was received.
func (r Rating) MarshalJSON() ([]byte, error) {
	v, ok := r.Value()
	if !ok {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}
