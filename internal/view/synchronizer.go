package view

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/register/internal/appointments"
	"github.com/MarcoPoloResearchLab/register/internal/realtime"
	"go.uber.org/zap"
)

const (
	EventTableReset  = "table-reset"
	EventRowRendered = "row-rendered"
	EventRowRemoved  = "row-removed"
	EventNotice      = "notice"
)

// ErrRowNotFound indicates that no rendered row carries the requested token.
var ErrRowNotFound = errors.New("view: row not found")

// Row is the rendered mirror of one appointment plus its bulk-selection state.
type Row struct {
	Record   appointments.Appointment
	Selected bool
}

// RowView is the wire shape of a rendered row.
type RowView struct {
	Token    int64  `json:"token"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Date     string `json:"date"`
	Time     string `json:"time"`
	Approved bool   `json:"approved"`
	Selected bool   `json:"selected"`
}

// NewRowView converts a row to its wire shape.
func NewRowView(row Row) RowView {
	return RowView{
		Token:    row.Record.Token.Int64(),
		Name:     row.Record.Name,
		Phone:    row.Record.Phone,
		Date:     row.Record.Date,
		Time:     row.Record.Time,
		Approved: row.Record.Approved,
		Selected: row.Selected,
	}
}

// TableResetEvent carries the full table after a reload.
type TableResetEvent struct {
	Rows []RowView `json:"rows"`
}

// RowRemovedEvent names the row taken out of the table.
type RowRemovedEvent struct {
	Token int64 `json:"token"`
}

// Notice is a user-facing notification.
type Notice struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	Icon  string `json:"icon"`
}

// Publisher receives view events for live subscribers.
type Publisher interface {
	Publish(message realtime.Message)
}

type SynchronizerConfig struct {
	Publisher  Publisher
	IDProvider IDProvider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Synchronizer keeps the rendered table mirror in step with the record store.
// It never persists anything; callers patch it only after a successful write.
type Synchronizer struct {
	mu         sync.RWMutex
	order      []appointments.Token
	rows       map[appointments.Token]*Row
	index      *TableIndex
	publisher  Publisher
	idProvider IDProvider
	clock      func() time.Time
	logger     *zap.Logger
}

func NewSynchronizer(cfg SynchronizerConfig) *Synchronizer {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synchronizer{
		rows:       make(map[appointments.Token]*Row),
		index:      NewTableIndex(nil),
		publisher:  cfg.Publisher,
		idProvider: idProvider,
		clock:      clock,
		logger:     logger,
	}
}

// RenderAll discards the mirror and rebuilds it from records, tearing down
// the table index before building a fresh one.
func (s *Synchronizer) RenderAll(records []appointments.Appointment) {
	s.mu.Lock()
	s.index.Destroy()
	s.order = make([]appointments.Token, 0, len(records))
	s.rows = make(map[appointments.Token]*Row, len(records))
	for _, record := range records {
		if _, exists := s.rows[record.Token]; exists {
			s.rows[record.Token].Record = record
			continue
		}
		s.order = append(s.order, record.Token)
		s.rows[record.Token] = &Row{Record: record}
	}
	snapshot := s.snapshotLocked()
	s.index = NewTableIndex(snapshot)
	s.mu.Unlock()

	views := make([]RowView, 0, len(snapshot))
	for _, row := range snapshot {
		views = append(views, NewRowView(row))
	}
	s.logger.Debug("table rendered", zap.Int("rows", len(snapshot)))
	s.publish(EventTableReset, TableResetEvent{Rows: views})
}

// RenderOne appends a row for record, or patches the row already carrying its token.
func (s *Synchronizer) RenderOne(record appointments.Appointment) {
	s.mu.Lock()
	row, exists := s.rows[record.Token]
	if exists {
		row.Record = record
	} else {
		row = &Row{Record: record}
		s.rows[record.Token] = row
		s.order = append(s.order, record.Token)
	}
	s.index.Upsert(record)
	rendered := *row
	s.mu.Unlock()

	s.publish(EventRowRendered, NewRowView(rendered))
}

// RemoveRow removes the row with token and reports whether one was present.
func (s *Synchronizer) RemoveRow(token appointments.Token) bool {
	s.mu.Lock()
	if _, exists := s.rows[token]; !exists {
		s.mu.Unlock()
		return false
	}
	delete(s.rows, token)
	for position, candidate := range s.order {
		if candidate == token {
			s.order = append(s.order[:position], s.order[position+1:]...)
			break
		}
	}
	s.index.Remove(token)
	s.mu.Unlock()

	s.publish(EventRowRemoved, RowRemovedEvent{Token: token.Int64()})
	return true
}

// SetSelected toggles the bulk-selection checkbox of a row.
func (s *Synchronizer) SetSelected(token appointments.Token, selected bool) (Row, error) {
	s.mu.Lock()
	row, exists := s.rows[token]
	if !exists {
		s.mu.Unlock()
		return Row{}, ErrRowNotFound
	}
	row.Selected = selected
	updated := *row
	s.mu.Unlock()

	s.publish(EventRowRendered, NewRowView(updated))
	return updated, nil
}

// SelectedTokens returns the tokens of every selected row in display order.
func (s *Synchronizer) SelectedTokens() []appointments.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tokens := make([]appointments.Token, 0)
	for _, token := range s.order {
		if s.rows[token].Selected {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// Row returns a copy of the row carrying token.
func (s *Synchronizer) Row(token appointments.Token) (Row, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, exists := s.rows[token]
	if !exists {
		return Row{}, false
	}
	return *row, true
}

// Rows returns a copy of every row in display order.
func (s *Synchronizer) Rows() []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Records returns the appointments currently rendered, in display order.
func (s *Synchronizer) Records() []appointments.Appointment {
	rows := s.Rows()
	records := make([]appointments.Appointment, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.Record)
	}
	return records
}

// Tokens returns the rendered tokens in display order.
func (s *Synchronizer) Tokens() []appointments.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]appointments.Token(nil), s.order...)
}

// Query runs a sort/search/paginate request through the table index.
func (s *Synchronizer) Query(query Query) Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Query(s.snapshotLocked(), query)
}

// Notify delivers a user-facing notice to live subscribers.
func (s *Synchronizer) Notify(_ context.Context, notice Notice) {
	s.publish(EventNotice, notice)
}

func (s *Synchronizer) snapshotLocked() []Row {
	rows := make([]Row, 0, len(s.order))
	for _, token := range s.order {
		rows = append(rows, *s.rows[token])
	}
	return rows
}

func (s *Synchronizer) publish(eventType string, data any) {
	if s.publisher == nil {
		return
	}
	eventID, err := s.idProvider.NewID()
	if err != nil {
		s.logger.Warn("view event id generation failed", zap.String("event", eventType), zap.Error(err))
		eventID = ""
	}
	s.publisher.Publish(realtime.Message{
		ID:        eventID,
		EventType: eventType,
		Data:      data,
		Timestamp: s.clock().UTC(),
	})
}
