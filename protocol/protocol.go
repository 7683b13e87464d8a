// Package protocol defines the line-framed JSON request/response wire
// shapes exchanged over the daemon's Unix socket, replacing the
// teacher's Forth-style stack protocol (parser.Parser/parser.Command in
// parser/parser.go) with the one JSON-object-per-line scheme spec.md
// §4.8/§6 specifies. Kept in its own package, mirroring how the teacher
// separates wire decoding (parser) from dispatch (server).
package protocol

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/dskidx/dskidx/internal/model"
)

// Command names recognized in a Request's "cmd" field.
const (
	CmdStatus   = "status"
	CmdWarmup   = "warmup"
	CmdSearch   = "search"
	CmdList     = "list"
	CmdLaunch   = "launch"
	CmdShutdown = "shutdown"
)

// Response "type" discriminators.
const (
	TypeOK      = "ok"
	TypeStatus  = "status"
	TypeEntries = "entries"
	TypeError   = "error"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 1000
)

// Request is the envelope every incoming line decodes into. Fields not
// used by Cmd are simply left zero.
type Request struct {
	Cmd            string   `json:"cmd"`
	Roots          []string `json:"roots,omitempty"`
	RespectTryExec bool     `json:"respect_try_exec,omitempty"`
	Query          string   `json:"query,omitempty"`
	Limit          *int     `json:"limit,omitempty"`
	EmptyMode      string   `json:"empty_mode,omitempty"`
	DesktopID      string   `json:"desktop_id,omitempty"`
	Action         *string  `json:"action,omitempty"`
}

// NormalizedLimit applies the search default/max-clamp from spec.md §4.8.
func (r *Request) NormalizedLimit() int {
	if r.Limit == nil {
		return defaultSearchLimit
	}
	n := *r.Limit
	if n <= 0 {
		return defaultSearchLimit
	}
	if n > maxSearchLimit {
		return maxSearchLimit
	}
	return n
}

// NormalizedEmptyMode applies the "recency" default from spec.md §4.8.
func (r *Request) NormalizedEmptyMode() model.EmptyMode {
	if model.EmptyMode(r.EmptyMode) == model.EmptyModeFrequency {
		return model.EmptyModeFrequency
	}
	return model.EmptyModeRecency
}

// Response is the single shape every reply marshals from; omitempty
// keeps each line minimal, matching the distinct shapes listed in
// spec.md §4.8 ("ok" / "status" / "entries" / "error").
type Response struct {
	Type          string        `json:"type"`
	HasIndexCount int           `json:"has_index_count,omitempty"`
	Entries       []ScoredEntry `json:"entries,omitempty"`
	Kind          string        `json:"kind,omitempty"`
	Message       string        `json:"message,omitempty"`
}

// ScoredEntry is the JSON entry shape in spec.md §6; Score is omitted
// outside search responses (List/Launch never set it).
type ScoredEntry struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	GenericName string         `json:"generic_name"`
	Comment     string         `json:"comment"`
	Exec        string         `json:"exec"`
	Icon        string         `json:"icon"`
	Categories  []string       `json:"categories"`
	Keywords    []string       `json:"keywords"`
	MimeTypes   []string       `json:"mime_types"`
	NoDisplay   bool           `json:"no_display"`
	Terminal    bool           `json:"terminal"`
	Actions     []model.Action `json:"actions"`
	Score       *float64       `json:"score,omitempty"`
}

// FromEntry projects a model.Entry (optionally scored) into the wire
// shape. scored=false omits the score field entirely (list/launch).
func FromEntry(e model.Entry, score float64, scored bool) ScoredEntry {
	se := ScoredEntry{
		ID:          e.DesktopID,
		Name:        e.Name,
		GenericName: e.GenericName,
		Comment:     e.Comment,
		Exec:        e.Exec,
		Icon:        e.Icon,
		Categories:  e.Categories,
		Keywords:    e.Keywords,
		MimeTypes:   e.MimeTypes,
		NoDisplay:   e.NoDisplay,
		Terminal:    e.Terminal,
		Actions:     e.Actions,
	}
	if scored {
		se.Score = &score
	}
	return se
}

func OK() Response { return Response{Type: TypeOK} }

func Status(count int) Response {
	return Response{Type: TypeStatus, HasIndexCount: count}
}

func Entries(entries []ScoredEntry) Response {
	return Response{Type: TypeEntries, Entries: entries}
}

func Error(kind, message string) Response {
	return Response{Type: TypeError, Kind: kind, Message: message}
}

// Reader decodes one JSON Request per line from a connection.
type Reader struct {
	br *bufio.Reader
}

func NewReader(r io.Reader) *Reader { return &Reader{br: bufio.NewReader(r)} }

// ReadRequest reads and decodes the next line. Returns io.EOF when the
// peer closes the connection.
func (r *Reader) ReadRequest() (Request, error) {
	line, err := r.br.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return Request{}, err
	}
	var req Request
	if decErr := json.Unmarshal(line, &req); decErr != nil {
		return Request{}, decErr
	}
	return req, nil
}

// ReadResponse reads and decodes the next line as a Response; used by
// clients reading the daemon's reply to a request it sent.
func (r *Reader) ReadResponse() (Response, error) {
	line, err := r.br.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return Response{}, err
	}
	var resp Response
	if decErr := json.Unmarshal(line, &resp); decErr != nil {
		return Response{}, decErr
	}
	return resp, nil
}

// WriteResponse encodes resp as one JSON line terminated by \n.
func WriteResponse(w io.Writer, resp Response) error {
	return writeLine(w, resp)
}

// WriteRequest encodes req as one JSON line terminated by \n; used by
// clients sending a request to the daemon.
func WriteRequest(w io.Writer, req Request) error {
	return writeLine(w, req)
}

func writeLine(w io.Writer, v any) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return err
	}
	encoded = append(encoded, '\n')
	_, err = w.Write(encoded)
	return err
}
