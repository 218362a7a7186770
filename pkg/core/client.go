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
	"net/http"

	"github.com/google/uuid"
)

const ChannelIDHeader = "X-Stream-Channel-ID"

// ChannelID identifies the host channel behind r. Reconnecting hosts keep
// their identity by sending the header or the channel query parameter.
func ChannelID(r *http.Request) string {
	if id := r.Header.Get(ChannelIDHeader); id != "" {
		return id
	}
	if id := r.URL.Query().Get("channel"); id != "" {
		return id
	}
	return uuid.New().String()
}
