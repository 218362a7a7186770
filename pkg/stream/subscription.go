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
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
)

const (
	ModeMerge    = "MERGE"
	ModeDistinct = "DISTINCT"
	ModeRaw      = "RAW"
	ModeCommand  = "COMMAND"

	FrequencyUnfiltered = "unfiltered"
	SnapshotYes         = "yes"
	SnapshotNo          = "no"

	keyField     = "key"
	commandField = "command"
)

// Subscription describes a set of items and fields to receive updates for.
// Its configuration is frozen while it is active, i.e. between
// Client.Subscribe and Client.Unsubscribe.
type Subscription struct {
	mu           sync.Mutex
	mode         string
	items        []string
	group        string
	fields       []string
	schema       string
	dataAdapter  string
	selector     string
	bufferSize   string
	snapshot     string
	maxFrequency string
	dataAdapter2 string
	fields2      []string
	schema2      string
	listeners    []SubscriptionListener

	client     *Client
	active     bool
	subscribed bool
	run        *subscriptionRun
	log        Logger
}

func NewSubscription(mode string) (*Subscription, error) {
	switch mode {
	case ModeMerge, ModeDistinct, ModeRaw, ModeCommand:
	default:
		return nil, fmt.Errorf("%w: mode=%q", core.ErrBadArgument, mode)
	}
	return &Subscription{mode: mode, log: getLogger(CategorySubscriptions)}, nil
}

func (s *Subscription) AddListener(l SubscriptionListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Subscription) RemoveListener(l SubscriptionListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = slices.DeleteFunc(s.listeners, func(e SubscriptionListener) bool { return e == l })
}

func (s *Subscription) Listeners() []SubscriptionListener {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.listeners)
}

func (s *Subscription) errActive() error {
	return fmt.Errorf("%w: cannot modify an active Subscription", core.ErrIllegalState)
}

// configure applies fn unless the subscription is active.
func (s *Subscription) configure(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return s.errActive()
	}
	return fn()
}

func validNames(kind string, names []string) error {
	for _, n := range names {
		if n == "" || strings.ContainsAny(n, " \t\n") {
			return fmt.Errorf("%w: invalid %s name %q", core.ErrBadArgument, kind, n)
		}
	}
	return nil
}

func (s *Subscription) SetItems(items []string) error {
	if err := validNames("item", items); err != nil {
		return err
	}
	return s.configure(func() error {
		s.items = slices.Clone(items)
		s.group = ""
		return nil
	})
}

func (s *Subscription) SetItemGroup(group string) error {
	return s.configure(func() error {
		s.group = group
		s.items = nil
		return nil
	})
}

func (s *Subscription) SetFields(fields []string) error {
	if err := validNames("field", fields); err != nil {
		return err
	}
	return s.configure(func() error {
		s.fields = slices.Clone(fields)
		s.schema = ""
		return nil
	})
}

func (s *Subscription) SetFieldSchema(schema string) error {
	return s.configure(func() error {
		s.schema = schema
		s.fields = nil
		return nil
	})
}

func (s *Subscription) SetDataAdapter(adapter string) error {
	return s.configure(func() error {
		s.dataAdapter = adapter
		return nil
	})
}

func (s *Subscription) SetSelector(selector string) error {
	return s.configure(func() error {
		s.selector = selector
		return nil
	})
}

// SetRequestedBufferSize accepts "unlimited" or a positive integer.
func (s *Subscription) SetRequestedBufferSize(size string) error {
	if size != Unlimited {
		if n, err := strconv.Atoi(size); err != nil || n <= 0 {
			return fmt.Errorf("%w: bufferSize=%q", core.ErrBadArgument, size)
		}
	}
	return s.configure(func() error {
		s.bufferSize = size
		return nil
	})
}

// SetRequestedSnapshot accepts "yes", "no" or, in DISTINCT mode, the
// number of past events to replay.
func (s *Subscription) SetRequestedSnapshot(snapshot string) error {
	return s.configure(func() error {
		switch snapshot {
		case SnapshotNo:
		case SnapshotYes:
			if s.mode == ModeRaw {
				return fmt.Errorf("%w: snapshot not available in RAW mode", core.ErrIllegalState)
			}
		default:
			n, err := strconv.Atoi(snapshot)
			if err != nil || n <= 0 {
				return fmt.Errorf("%w: snapshot=%q", core.ErrBadArgument, snapshot)
			}
			if s.mode != ModeDistinct {
				return fmt.Errorf("%w: snapshot length is only available in DISTINCT mode", core.ErrIllegalState)
			}
		}
		s.snapshot = snapshot
		return nil
	})
}

// SetRequestedMaxFrequency accepts "unlimited", "unfiltered" or a positive
// number of updates per second. It may be changed while active, except to
// or from "unfiltered".
func (s *Subscription) SetRequestedMaxFrequency(freq string) error {
	if freq != FrequencyUnfiltered {
		if _, err := parseLimit(freq, "requestedMaxFrequency"); err != nil {
			return err
		}
	}
	s.mu.Lock()
	if s.active && (freq == FrequencyUnfiltered) != (s.maxFrequency == FrequencyUnfiltered) {
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot switch to or from unfiltered while active", core.ErrIllegalState)
	}
	s.maxFrequency = freq
	run := s.run
	listeners := slices.Clone(s.listeners)
	mode := s.mode
	s.mu.Unlock()

	if run != nil && mode != ModeRaw {
		run.setFrequency(freq)
		real := realFrequency(freq)
		for _, l := range listeners {
			l.OnRealMaxFrequency(real)
		}
	}
	return nil
}

func (s *Subscription) requireCommand(what string) error {
	if s.mode != ModeCommand {
		return fmt.Errorf("%w: %s is only available in COMMAND mode", core.ErrIllegalState, what)
	}
	return nil
}

func (s *Subscription) SetCommandSecondLevelDataAdapter(adapter string) error {
	return s.configure(func() error {
		if err := s.requireCommand("second-level data adapter"); err != nil {
			return err
		}
		s.dataAdapter2 = adapter
		return nil
	})
}

func (s *Subscription) SetCommandSecondLevelFields(fields []string) error {
	if err := validNames("field", fields); err != nil {
		return err
	}
	return s.configure(func() error {
		if err := s.requireCommand("second-level fields"); err != nil {
			return err
		}
		s.fields2 = slices.Clone(fields)
		s.schema2 = ""
		return nil
	})
}

func (s *Subscription) SetCommandSecondLevelFieldSchema(schema string) error {
	return s.configure(func() error {
		if err := s.requireCommand("second-level field schema"); err != nil {
			return err
		}
		s.schema2 = schema
		s.fields2 = nil
		return nil
	})
}

func (s *Subscription) Mode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Subscription) Items() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

func (s *Subscription) ItemGroup() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.group
}

func (s *Subscription) Fields() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.fields)
}

func (s *Subscription) FieldSchema() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schema
}

func (s *Subscription) DataAdapter() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataAdapter
}

func (s *Subscription) Selector() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selector
}

func (s *Subscription) RequestedBufferSize() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bufferSize
}

func (s *Subscription) RequestedSnapshot() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

func (s *Subscription) RequestedMaxFrequency() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxFrequency
}

func (s *Subscription) CommandSecondLevelDataAdapter() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataAdapter2
}

func (s *Subscription) CommandSecondLevelFields() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.fields2)
}

func (s *Subscription) CommandSecondLevelFieldSchema() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schema2
}

// IsActive is true between Client.Subscribe and Client.Unsubscribe.
func (s *Subscription) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// IsSubscribed is true while updates are flowing from a connected client.
func (s *Subscription) IsSubscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribed
}

func (s *Subscription) itemNamesLocked() []string {
	if len(s.items) > 0 {
		return s.items
	}
	return strings.Fields(s.group)
}

func (s *Subscription) fieldNamesLocked() []string {
	if len(s.fields) > 0 {
		return s.fields
	}
	return strings.Fields(s.schema)
}

func (s *Subscription) hasSecondLevelLocked() bool {
	return s.mode == ModeCommand && (len(s.fields2) > 0 || s.schema2 != "")
}

func (s *Subscription) secondNamesLocked() []string {
	if !s.hasSecondLevelLocked() {
		return nil
	}
	if len(s.fields2) > 0 {
		return s.fields2
	}
	return strings.Fields(s.schema2)
}

// exposedNamesLocked returns the field names visible to by-name lookups,
// or nil when the subscription was configured through a schema.
func (s *Subscription) exposedNamesLocked() []string {
	if len(s.fields) == 0 {
		return nil
	}
	if !s.hasSecondLevelLocked() {
		return s.fields
	}
	if len(s.fields2) == 0 {
		return nil
	}
	return append(slices.Clone(s.fields), s.fields2...)
}

func (s *Subscription) positionOfLocked(field string) (int, error) {
	if err := s.requireCommand(field + " position"); err != nil {
		return 0, err
	}
	idx := slices.Index(s.fieldNamesLocked(), field)
	if idx < 0 {
		return 0, fmt.Errorf("%w: no %q field configured", core.ErrIllegalState, field)
	}
	return idx + 1, nil
}

// CommandPosition is the 1-based position of the "command" field.
func (s *Subscription) CommandPosition() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionOfLocked(commandField)
}

// KeyPosition is the 1-based position of the "key" field.
func (s *Subscription) KeyPosition() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionOfLocked(keyField)
}

// ItemPos resolves an item name; it fails when items were given as a group.
func (s *Subscription) ItemPos(name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return 0, fmt.Errorf("%w: subscription was configured with an item group", core.ErrIllegalState)
	}
	idx := slices.Index(s.items, name)
	if idx < 0 {
		return 0, fmt.Errorf("%w: unknown item %q", core.ErrBadArgument, name)
	}
	return idx + 1, nil
}

// FieldPos resolves a field name; it fails when fields were given as a schema.
func (s *Subscription) FieldPos(name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := s.exposedNamesLocked()
	if names == nil {
		return 0, fmt.Errorf("%w: subscription was configured with a field schema", core.ErrIllegalState)
	}
	idx := slices.Index(names, name)
	if idx < 0 {
		return 0, fmt.Errorf("%w: unknown field %q", core.ErrBadArgument, name)
	}
	return idx + 1, nil
}

func (s *Subscription) checkPositionsLocked(itemPos, fieldPos int) error {
	if itemPos < 1 || itemPos > len(s.itemNamesLocked()) {
		return fmt.Errorf("%w: item position %d out of range", core.ErrBadArgument, itemPos)
	}
	total := len(s.fieldNamesLocked()) + len(s.secondNamesLocked())
	if fieldPos < 1 || fieldPos > total {
		return fmt.Errorf("%w: field position %d out of range", core.ErrBadArgument, fieldPos)
	}
	return nil
}

// Value returns the latest value of a field of an item, nil if none was
// received yet or if the field has no value.
func (s *Subscription) Value(itemPos, fieldPos int) (*string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkPositionsLocked(itemPos, fieldPos); err != nil {
		return nil, err
	}
	if s.run == nil {
		return nil, nil
	}
	st := s.run.items[itemPos-1]
	if st.values == nil {
		return nil, nil
	}
	return st.values[fieldPos-1], nil
}

// CommandValue returns the latest value of a field of the row identified
// by key within an item of a COMMAND subscription.
func (s *Subscription) CommandValue(itemPos int, key string, fieldPos int) (*string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireCommand("command value"); err != nil {
		return nil, err
	}
	if err := s.checkPositionsLocked(itemPos, fieldPos); err != nil {
		return nil, err
	}
	if s.run == nil {
		return nil, nil
	}
	row, ok := s.run.items[itemPos-1].rows[key]
	if !ok {
		return nil, nil
	}
	return row[fieldPos-1], nil
}

// validateLocked checks that the subscription can be sent to a client.
func (s *Subscription) validateLocked() error {
	if len(s.itemNamesLocked()) == 0 {
		return fmt.Errorf("%w: invalid Subscription, please specify the items", core.ErrIllegalState)
	}
	names := s.fieldNamesLocked()
	if len(names) == 0 {
		return fmt.Errorf("%w: invalid Subscription, please specify the fields", core.ErrIllegalState)
	}
	if s.mode == ModeCommand {
		if !slices.Contains(names, keyField) || !slices.Contains(names, commandField) {
			return fmt.Errorf("%w: COMMAND mode requires the key and command fields", core.ErrIllegalState)
		}
	}
	return nil
}

func realFrequency(freq string) string {
	if freq == "" || freq == FrequencyUnfiltered {
		return Unlimited
	}
	return freq
}
