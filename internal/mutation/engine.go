// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mutation

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/logger"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/telemetry"
)

// ErrUnknownItem is returned for an item ID that was never loaded.
var ErrUnknownItem = errors.New("unknown assessment item")

// Persister sends an item patch and returns the canonical item state.
type Persister interface {
	UpdateItem(ctx context.Context, id string, patch model.ItemPatch) (model.ItemState, error)
}

// ResultMsg carries the outcome of one persistence request.
type ResultMsg struct {
	ItemID string
	Seq    uint64
	State  model.ItemState
	Err    error
}

// request is the in-flight persistence call of one item.
type request struct {
	seq     uint64
	sent    map[model.Field]string
	started time.Time
}

// chain is the unconfirmed state of one item. pending holds, per field, the
// latest local value and the authoritative value captured before the chain's
// first request. queued marks fields whose latest value has not been sent.
type chain struct {
	pending  map[model.Field]*model.PendingMutation
	queued   map[model.Field]bool
	inFlight *request
	seq      uint64
}

func newChain() *chain {
	return &chain{
		pending: make(map[model.Field]*model.PendingMutation),
		queued:  make(map[model.Field]bool),
	}
}

func (c *chain) settled() bool {
	return c.inFlight == nil && len(c.pending) == 0 && len(c.queued) == 0
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine applies item edits optimistically and reconciles them with the
// service. Writes for one item are serialized: at most one request per item
// is in flight, and edits made meanwhile are sent once it resolves. All
// methods must be called from the event loop.
type Engine struct {
	persister Persister
	statuses  model.StatusSet
	coalescer *Coalescer
	ctx       context.Context
	log       *logger.Logger
	metrics   *telemetry.Metrics

	items  map[string]*model.AssessmentItem
	order  []string
	chains map[string]*chain
}

// NewEngine creates an engine.
func NewEngine(persister Persister, statuses model.StatusSet, debounce time.Duration) *Engine {
	return &Engine{
		persister: persister,
		statuses:  statuses,
		coalescer: NewCoalescer(debounce),
		ctx:       context.Background(),
		log:       logger.Nop(),
		items:     make(map[string]*model.AssessmentItem),
		chains:    make(map[string]*chain),
	}
}

// WithLogger sets the logger.
func (e *Engine) WithLogger(log *logger.Logger) *Engine {
	e.log = log.Component("mutation")
	return e
}

// WithMetrics sets the metrics sink.
func (e *Engine) WithMetrics(m *telemetry.Metrics) *Engine {
	e.metrics = m
	return e
}

// WithContext sets the context of persistence requests.
func (e *Engine) WithContext(ctx context.Context) *Engine {
	e.ctx = ctx
	return e
}

// Statuses returns the accepted status set.
func (e *Engine) Statuses() model.StatusSet {
	return e.statuses
}

// Load registers the shared item instances. An item whose previous instance
// still has unconfirmed edits keeps that instance, so a reload never wipes
// local edits.
func (e *Engine) Load(items []*model.AssessmentItem) {
	next := make(map[string]*model.AssessmentItem, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		if _, dup := next[item.ID]; dup {
			continue
		}
		if c, ok := e.chains[item.ID]; ok && !c.settled() {
			if prev, ok := e.items[item.ID]; ok {
				item = prev
			}
		}
		next[item.ID] = item
		order = append(order, item.ID)
	}
	// Chains of items that disappeared keep running against their old
	// instances; their results are still applied there.
	for id, item := range e.items {
		if _, kept := next[id]; !kept {
			if c, ok := e.chains[id]; ok && !c.settled() {
				next[id] = item
			}
		}
	}
	e.items = next
	e.order = order
}

// Item returns the shared instance of id.
func (e *Engine) Item(id string) (*model.AssessmentItem, bool) {
	item, ok := e.items[id]
	return item, ok
}

// Items returns copies of the loaded items in load order.
func (e *Engine) Items() []model.AssessmentItem {
	out := make([]model.AssessmentItem, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.items[id].Clone())
	}
	return out
}

// Pending returns the unconfirmed mutations of id.
func (e *Engine) Pending(id string) []model.PendingMutation {
	c, ok := e.chains[id]
	if !ok {
		return nil
	}
	var out []model.PendingMutation
	for _, f := range []model.Field{model.FieldStatus, model.FieldNotes} {
		if pm, ok := c.pending[f]; ok {
			out = append(out, *pm)
		}
	}
	return out
}

// Settled reports whether no item has unconfirmed edits or open windows.
func (e *Engine) Settled() bool {
	for id, c := range e.chains {
		if !c.settled() || e.coalescer.Pending(id) {
			return false
		}
	}
	return true
}

// =============================================================================
// EDITS
// =============================================================================

// SetStatus applies status to item id immediately, marks it saving and
// returns the command that persists it. If a request for the item is in
// flight the change is sent once that request resolves.
func (e *Engine) SetStatus(id string, status model.Status) (tea.Cmd, error) {
	item, ok := e.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownItem, id)
	}
	if !e.statuses.Contains(status) {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidStatus, status)
	}

	c := e.chainFor(id)
	e.track(c, model.FieldStatus, string(item.Status), string(status))
	item.Status = status
	item.Saving = true
	c.queued[model.FieldStatus] = true

	return e.dispatch(id), nil
}

// SetNotes applies notes to item id immediately and restarts the item's
// debounce window. The item is not marked saving. Editing the notes back to
// the saved text while nothing is in flight closes the window without a
// request and returns a nil command.
func (e *Engine) SetNotes(id string, notes string) (tea.Cmd, error) {
	item, ok := e.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownItem, id)
	}

	c := e.chainFor(id)
	e.track(c, model.FieldNotes, item.Notes, notes)
	item.Notes = notes

	if pm := c.pending[model.FieldNotes]; c.inFlight == nil && !c.queued[model.FieldNotes] && pm.Value == pm.Snapshot {
		e.coalescer.Cancel(id)
		delete(c.pending, model.FieldNotes)
		if c.settled() {
			delete(e.chains, id)
		}
		return nil, nil
	}
	return e.coalescer.Touch(id), nil
}

// Update handles FlushMsg and ResultMsg. It returns the follow-up command and,
// when a request failed, the notice to show.
func (e *Engine) Update(msg tea.Msg) (tea.Cmd, *Notice) {
	switch msg := msg.(type) {
	case FlushMsg:
		return e.flush(msg), nil
	case ResultMsg:
		return e.resolve(msg)
	}
	return nil, nil
}

// =============================================================================
// INTERNALS
// =============================================================================

func (e *Engine) chainFor(id string) *chain {
	c, ok := e.chains[id]
	if !ok {
		c = newChain()
		e.chains[id] = c
	}
	return c
}

// track records a local edit. The first edit of a field captures the
// authoritative value as the rollback snapshot; later edits only move Value.
func (e *Engine) track(c *chain, field model.Field, current, next string) {
	if pm, ok := c.pending[field]; ok {
		pm.Value = next
		return
	}
	c.pending[field] = &model.PendingMutation{Field: field, Value: next, Snapshot: current}
}

func (e *Engine) flush(msg FlushMsg) tea.Cmd {
	edits, ok := e.coalescer.Fire(msg)
	if !ok {
		return nil
	}
	e.metrics.NotesCoalesced(edits - 1)
	c, ok := e.chains[msg.ItemID]
	if !ok {
		return nil
	}
	c.queued[model.FieldNotes] = true
	return e.dispatch(msg.ItemID)
}

// dispatch sends the queued fields of id unless a request is in flight.
// Every request carries the latest status; a notes flush adds the latest
// notes, so a concurrent status change is never clobbered.
func (e *Engine) dispatch(id string) tea.Cmd {
	c, ok := e.chains[id]
	item, exists := e.items[id]
	if !ok || !exists || c.inFlight != nil || len(c.queued) == 0 {
		return nil
	}

	status := item.Status
	patch := model.ItemPatch{Status: &status}
	sent := map[model.Field]string{model.FieldStatus: string(status)}
	if c.queued[model.FieldNotes] {
		notes := item.Notes
		patch.Notes = &notes
		sent[model.FieldNotes] = notes
	}
	c.queued = make(map[model.Field]bool)

	c.seq++
	req := &request{seq: c.seq, sent: sent, started: time.Now()}
	c.inFlight = req
	e.metrics.MutationStarted()

	e.log.Debug().
		Str("item", id).
		Uint64("seq", req.seq).
		Strs("fields", fieldNames(patch.Fields())).
		Msg("persisting item")

	ctx, persister, seq := e.ctx, e.persister, req.seq
	return func() tea.Msg {
		state, err := persister.UpdateItem(ctx, id, patch)
		return ResultMsg{ItemID: id, Seq: seq, State: state, Err: err}
	}
}

// newer reports whether field has a local edit that the resolving request
// did not carry.
func (e *Engine) newer(id string, c *chain, field model.Field, sent map[model.Field]string) bool {
	pm, ok := c.pending[field]
	if !ok {
		return false
	}
	if c.queued[field] {
		return true
	}
	if field == model.FieldNotes && e.coalescer.Pending(id) {
		return true
	}
	value, wasSent := sent[field]
	return !wasSent || value != pm.Value
}

func (e *Engine) resolve(msg ResultMsg) (tea.Cmd, *Notice) {
	c, ok := e.chains[msg.ItemID]
	if !ok || c.inFlight == nil || c.inFlight.seq != msg.Seq {
		e.log.Debug().Str("item", msg.ItemID).Uint64("seq", msg.Seq).Msg("stale mutation result ignored")
		return nil, nil
	}
	req := c.inFlight
	c.inFlight = nil
	item := e.items[msg.ItemID]

	var notice *Notice
	if msg.Err == nil {
		e.metrics.RecordMutation(telemetry.OutcomeConfirmed, time.Since(req.started))
		e.confirm(msg.ItemID, c, item, req, msg.State)
	} else {
		e.metrics.RecordMutation(telemetry.OutcomeRolledBack, time.Since(req.started))
		notice = e.rollback(msg.ItemID, c, item, req, msg.Err)
	}

	if item != nil {
		_, statusPending := c.pending[model.FieldStatus]
		item.Saving = statusPending
	}
	cmd := e.dispatch(msg.ItemID)
	if c.settled() && !e.coalescer.Pending(msg.ItemID) {
		delete(e.chains, msg.ItemID)
	}
	return cmd, notice
}

// confirm merges the canonical state. A field with a newer local edit keeps
// the local value and takes the server value as its new rollback base.
func (e *Engine) confirm(id string, c *chain, item *model.AssessmentItem, req *request, state model.ItemState) {
	server := map[model.Field]string{
		model.FieldStatus: string(state.Status),
		model.FieldNotes:  state.Notes,
	}
	for _, field := range []model.Field{model.FieldStatus, model.FieldNotes} {
		if e.newer(id, c, field, req.sent) {
			c.pending[field].Snapshot = server[field]
			continue
		}
		delete(c.pending, field)
		if item != nil {
			setField(item, field, server[field])
		}
	}
	if item != nil && !state.UpdatedAt.IsZero() {
		item.UpdatedAt = state.UpdatedAt
	}
	e.log.Debug().Str("item", id).Uint64("seq", req.seq).Msg("item confirmed")
}

// rollback restores every sent field to its chain snapshot, except fields
// with a newer local edit, which are sent next and keep the snapshot.
func (e *Engine) rollback(id string, c *chain, item *model.AssessmentItem, req *request, cause error) *Notice {
	var (
		failed   []model.Field
		restored bool
	)
	for _, field := range []model.Field{model.FieldStatus, model.FieldNotes} {
		if _, wasSent := req.sent[field]; !wasSent {
			continue
		}
		pm, ok := c.pending[field]
		if !ok {
			continue
		}
		if req.sent[field] != pm.Snapshot {
			failed = append(failed, field)
		}
		if e.newer(id, c, field, req.sent) {
			continue
		}
		if item != nil {
			setField(item, field, pm.Snapshot)
		}
		delete(c.pending, field)
		restored = true
	}
	if len(failed) == 0 {
		failed = fieldsOf(req.sent)
	}

	e.log.Warn().
		Err(cause).
		Str("item", id).
		Strs("fields", fieldNames(failed)).
		Bool("restored", restored).
		Msg("item mutation failed")

	return newNotice(id, failed, restored, cause)
}

func setField(item *model.AssessmentItem, field model.Field, value string) {
	switch field {
	case model.FieldStatus:
		item.Status = model.Status(value)
	case model.FieldNotes:
		item.Notes = value
	}
}

func fieldsOf(sent map[model.Field]string) []model.Field {
	var out []model.Field
	for _, field := range []model.Field{model.FieldStatus, model.FieldNotes} {
		if _, ok := sent[field]; ok {
			out = append(out, field)
		}
	}
	return out
}

func fieldNames(fields []model.Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = string(f)
	}
	return out
}
