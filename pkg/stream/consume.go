// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

package stream

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
	"golang.org/x/time/rate"
)

const (
	// MetaCommand in a message's metadata carries out-of-band item commands.
	MetaCommand          = "ls_command"
	CommandClearSnapshot = "CS"

	defaultQueueSize = 64
)

// Topic joins the non-empty parts into a broker topic name.
func Topic(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ".")
}

// runPlan is the configuration of a subscription frozen at start time.
type runPlan struct {
	mode         string
	itemNames    []string
	names        []string
	second       []string
	exposed      []string
	adapterSet   string
	dataAdapter  string
	dataAdapter2 string
	queueSize    int
	lossy        bool
	snapshot     bool
	snapshotLen  int
	keyIdx       int
	cmdIdx       int
}

func (s *Subscription) planLocked(adapterSet string) runPlan {
	p := runPlan{
		mode:         s.mode,
		itemNames:    slices.Clone(s.itemNamesLocked()),
		names:        slices.Clone(s.fieldNamesLocked()),
		second:       slices.Clone(s.secondNamesLocked()),
		exposed:      s.exposedNamesLocked(),
		adapterSet:   adapterSet,
		dataAdapter:  s.dataAdapter,
		dataAdapter2: s.dataAdapter2,
		queueSize:    defaultQueueSize,
		keyIdx:       slices.Index(s.fieldNamesLocked(), keyField),
		cmdIdx:       slices.Index(s.fieldNamesLocked(), commandField),
	}
	if p.exposed != nil {
		p.exposed = slices.Clone(p.exposed)
	}
	if p.dataAdapter2 == "" {
		p.dataAdapter2 = s.dataAdapter
	}
	if n, err := strconv.Atoi(s.bufferSize); err == nil && n > 0 && s.maxFrequency != FrequencyUnfiltered {
		p.queueSize = n
		p.lossy = true
	}
	switch s.snapshot {
	case SnapshotNo:
	case "", SnapshotYes:
		p.snapshot = s.mode != ModeRaw
	default:
		p.snapshot = true
		p.snapshotLen, _ = strconv.Atoi(s.snapshot)
	}
	return p
}

type itemState struct {
	values   []*string
	rows     map[string][]*string
	children map[string]context.CancelFunc
}

func newItemState() *itemState {
	return &itemState{rows: make(map[string][]*string), children: make(map[string]context.CancelFunc)}
}

func (st *itemState) reset() {
	for _, cancel := range st.children {
		cancel()
	}
	st.values = nil
	st.rows = make(map[string][]*string)
	st.children = make(map[string]context.CancelFunc)
}

// subscriptionRun is one period during which a subscription receives
// updates from a transport.
type subscriptionRun struct {
	ctx     context.Context
	cancel  context.CancelFunc
	tr      core.Transport
	plan    runPlan
	items   []*itemState
	limiter atomic.Pointer[rate.Limiter]
	wg      sync.WaitGroup
}

func (r *subscriptionRun) setFrequency(freq string) {
	f, err := parseLimit(freq, "requestedMaxFrequency")
	if err != nil || f == 0 {
		r.limiter.Store(nil)
		return
	}
	r.limiter.Store(rate.NewLimiter(rate.Limit(f), 1))
}

func (r *subscriptionRun) wait(ctx context.Context) bool {
	l := r.limiter.Load()
	if l == nil {
		return ctx.Err() == nil
	}
	return l.Wait(ctx) == nil
}

// feed consumes topic in the background and returns the queue it fills.
// Lossy feeds drop messages when the queue is full and count them.
func (r *subscriptionRun) feed(ctx context.Context, topic string, onErr func(error)) (<-chan core.Message, *atomic.Int64) {
	in := make(chan core.Message)
	queue := make(chan core.Message, r.plan.queueSize)
	lost := new(atomic.Int64)

	go func() {
		if err := r.tr.Consume(ctx, topic, in); err != nil && ctx.Err() == nil {
			onErr(err)
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-in:
				if !r.plan.lossy {
					select {
					case queue <- msg:
					case <-ctx.Done():
						return
					}
					continue
				}
				select {
				case queue <- msg:
				default:
					lost.Add(1)
				}
			}
		}
	}()

	return queue, lost
}

// start opens a run bound to ctx. Client.Disconnect cancels ctx before it
// stops the subscriptions, so a run is never installed on a dead session.
func (s *Subscription) start(ctx context.Context, tr core.Transport, adapterSet string) {
	s.mu.Lock()
	if !s.active || s.run != nil || ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	plan := s.planLocked(adapterSet)
	runCtx, cancel := context.WithCancel(ctx)
	run := &subscriptionRun{
		ctx:    runCtx,
		cancel: cancel,
		tr:     tr,
		plan:   plan,
		items:  make([]*itemState, len(plan.itemNames)),
	}
	for i := range run.items {
		run.items[i] = newItemState()
	}
	run.setFrequency(s.maxFrequency)
	s.run = run
	s.subscribed = true
	freq := s.maxFrequency
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	if s.log.IsInfoEnabled() {
		s.log.Info(fmt.Sprintf("subscribing %s items=%v transport=%s", plan.mode, plan.itemNames, tr.Name()))
	}
	for _, l := range listeners {
		l.OnSubscription()
	}
	if plan.mode != ModeRaw {
		real := realFrequency(freq)
		for _, l := range listeners {
			l.OnRealMaxFrequency(real)
		}
	}
	for i, name := range plan.itemNames {
		run.wg.Add(1)
		go s.runItem(run, i+1, name)
	}
}

// stop ends the current run and waits for its delivery goroutines.
func (s *Subscription) stop() {
	s.mu.Lock()
	run := s.run
	wasSubscribed := s.subscribed
	s.run = nil
	s.subscribed = false
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	if run == nil {
		return
	}
	run.cancel()
	run.wg.Wait()
	if wasSubscribed {
		for _, l := range listeners {
			l.OnUnsubscription()
		}
	}
}

func (s *Subscription) recoverDelivery(what string) {
	if r := recover(); r != nil {
		s.log.Error(fmt.Sprintf("%s delivery panic recovered: %v", what, r))
	}
}

func (s *Subscription) runItem(run *subscriptionRun, pos int, name string) {
	defer run.wg.Done()
	defer s.recoverDelivery("item " + name)

	ctx := run.ctx
	topic := Topic(run.plan.adapterSet, run.plan.dataAdapter, name)

	if run.plan.snapshot {
		s.replaySnapshot(run, pos, name, topic)
	}

	queue, lost := run.feed(ctx, topic, func(err error) {
		s.log.Warn(fmt.Sprintf("consume %s failed: %v", topic, err))
		for _, l := range s.Listeners() {
			l.OnSubscriptionError(ErrorCodeSubscribeFailed, err.Error())
		}
	})

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-queue:
			if !run.wait(ctx) {
				return
			}
			if n := lost.Swap(0); n > 0 {
				for _, l := range s.Listeners() {
					l.OnItemLostUpdates(name, pos, int(n))
				}
			}
			s.apply(run, pos, name, msg, msg.Snapshot)
		}
	}
}

func (s *Subscription) replaySnapshot(run *subscriptionRun, pos int, name, topic string) {
	var msgs []core.Message
	if src, ok := run.tr.(core.SnapshotSource); ok {
		var err error
		msgs, err = src.Snapshot(run.ctx, topic)
		if err != nil {
			s.log.Warn(fmt.Sprintf("snapshot of %s unavailable: %v", topic, err))
			msgs = nil
		}
	}
	switch {
	case run.plan.mode == ModeMerge && len(msgs) > 1:
		msgs = msgs[len(msgs)-1:]
	case run.plan.snapshotLen > 0 && len(msgs) > run.plan.snapshotLen:
		msgs = msgs[len(msgs)-run.plan.snapshotLen:]
	}
	for _, m := range msgs {
		s.apply(run, pos, name, m, true)
	}
	if run.plan.mode == ModeDistinct || run.plan.mode == ModeCommand {
		for _, l := range s.Listeners() {
			l.OnEndOfSnapshot(name, pos)
		}
	}
}

func (s *Subscription) apply(run *subscriptionRun, pos int, name string, msg core.Message, snapshot bool) {
	plan := run.plan

	if msg.Metadata[MetaCommand] == CommandClearSnapshot {
		s.mu.Lock()
		if s.run != run {
			s.mu.Unlock()
			return
		}
		run.items[pos-1].reset()
		listeners := slices.Clone(s.listeners)
		s.mu.Unlock()
		for _, l := range listeners {
			l.OnClearSnapshot(name, pos)
		}
		return
	}

	values := decodeFields(msg.Payload, plan.names, len(plan.names))

	s.mu.Lock()
	if s.run != run {
		s.mu.Unlock()
		return
	}
	st := run.items[pos-1]
	var update *ItemUpdate
	var child string
	if plan.mode == ModeCommand {
		update, child = s.applyCommandLocked(run, st, pos, name, values, snapshot)
	} else {
		update = &ItemUpdate{
			itemName: name,
			itemPos:  pos,
			snapshot: snapshot,
			names:    plan.exposed,
			values:   values,
			changed:  diff(st.values, values),
		}
		st.values = values
	}
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	if update == nil {
		return
	}
	if child != "" {
		run.wg.Add(1)
		go s.runChild(run, pos, name, child)
	}
	for _, l := range listeners {
		l.OnItemUpdate(update)
	}
}

// applyCommandLocked merges a first-level COMMAND update into the key's
// row. It returns the key whose second-level subscription must start.
func (s *Subscription) applyCommandLocked(run *subscriptionRun, st *itemState, pos int, name string, values []*string, snapshot bool) (*ItemUpdate, string) {
	plan := run.plan
	keyV := values[plan.keyIdx]
	if keyV == nil {
		s.log.Warn(fmt.Sprintf("COMMAND update for item %s without key discarded", name))
		return nil, ""
	}
	key := *keyV
	cmd := "UPDATE"
	if v := values[plan.cmdIdx]; v != nil {
		cmd = *v
	}

	total := len(plan.names) + len(plan.second)
	prev, exists := st.rows[key]
	row := make([]*string, total)
	child := ""

	switch cmd {
	case "DELETE":
		if !exists {
			return nil, ""
		}
		row[plan.keyIdx] = keyV
		row[plan.cmdIdx] = strPtr("DELETE")
		delete(st.rows, key)
		if cancel, ok := st.children[key]; ok {
			cancel()
			delete(st.children, key)
		}
	default:
		copy(row, prev)
		copy(row, values)
		if exists {
			row[plan.cmdIdx] = strPtr("UPDATE")
		} else {
			row[plan.cmdIdx] = strPtr("ADD")
			if len(plan.second) > 0 {
				child = key
			}
		}
		st.rows[key] = row
	}

	update := &ItemUpdate{
		itemName: name,
		itemPos:  pos,
		snapshot: snapshot,
		names:    plan.exposed,
		values:   row,
		changed:  diff(prev, row),
	}
	st.values = row
	return update, child
}

// runChild follows the second-level item of a COMMAND row until the row
// is deleted or the run ends.
func (s *Subscription) runChild(run *subscriptionRun, pos int, itemName, key string) {
	defer run.wg.Done()
	defer s.recoverDelivery("second-level " + key)

	ctx, cancel := context.WithCancel(run.ctx)
	defer cancel()

	s.mu.Lock()
	st := run.items[pos-1]
	if _, ok := st.rows[key]; !ok || s.run != run {
		s.mu.Unlock()
		return
	}
	st.children[key] = cancel
	s.mu.Unlock()

	topic := Topic(run.plan.adapterSet, run.plan.dataAdapter2, key)
	queue, lost := run.feed(ctx, topic, func(err error) {
		for _, l := range s.Listeners() {
			l.OnCommandSecondLevelSubscriptionError(ErrorCodeSubscribeFailed, err.Error(), key)
		}
	})

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-queue:
			if !run.wait(ctx) {
				return
			}
			if n := lost.Swap(0); n > 0 {
				for _, l := range s.Listeners() {
					l.OnCommandSecondLevelItemLostUpdates(int(n), key)
				}
			}
			s.applySecondLevel(run, pos, itemName, key, msg)
		}
	}
}

func (s *Subscription) applySecondLevel(run *subscriptionRun, pos int, itemName, key string, msg core.Message) {
	plan := run.plan
	values := decodeFields(msg.Payload, plan.second, len(plan.second))

	s.mu.Lock()
	if s.run != run {
		s.mu.Unlock()
		return
	}
	st := run.items[pos-1]
	prev, ok := st.rows[key]
	if !ok {
		s.mu.Unlock()
		return
	}
	row := slices.Clone(prev)
	copy(row[len(plan.names):], values)
	row[plan.cmdIdx] = strPtr("UPDATE")
	st.rows[key] = row
	st.values = row
	update := &ItemUpdate{
		itemName: itemName,
		itemPos:  pos,
		names:    plan.exposed,
		values:   row,
		changed:  diff(prev, row),
	}
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, l := range listeners {
		l.OnItemUpdate(update)
	}
}
