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

package core

import (
	"errors"
	"fmt"
)

var (
	ErrBadArgument          = errors.New("bad argument")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrClientNotFound       = errors.New("client not found")
	ErrIllegalState         = errors.New("illegal state")
	ErrNotImplemented       = errors.New("not implemented")
	ErrNoRoute              = errors.New("no route")
	ErrTransportNotFound    = errors.New("transport not found")
	ErrTransportUnavailable = errors.New("transport unavailable")
	ErrSessionNotFound      = errors.New("session not found")
	ErrNotConnected         = errors.New("not connected")
)

const (
	CodeBadArgument  = "BadArgument"
	CodeNotFound     = "NotFound"
	CodeIllegalState = "IllegalState"
	CodeInternal     = "Lightstreamer Internal Error"
)

// DenyError is returned by a Transport that refuses a published message.
type DenyError struct {
	Code    int
	Message string
}

func (e *DenyError) Error() string {
	return fmt.Sprintf("message denied: code=%d %s", e.Code, e.Message)
}

// ErrorCode classifies err into the reply code sent back on the method channel.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrBadArgument):
		return CodeBadArgument
	case errors.Is(err, ErrSubscriptionNotFound),
		errors.Is(err, ErrClientNotFound),
		errors.Is(err, ErrSessionNotFound):
		return CodeNotFound
	case errors.Is(err, ErrIllegalState):
		return CodeIllegalState
	default:
		return CodeInternal
	}
}

func NewErrorReply(id uint64, err error) Reply {
	return Reply{
		ID:    id,
		Error: &ReplyError{Code: ErrorCode(err), Message: err.Error()},
	}
}
