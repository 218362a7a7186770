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

// ClientListener receives connection lifecycle notifications. Callbacks
// run on client goroutines, never while the client holds its lock.
type ClientListener interface {
	OnStatusChange(status string)
	OnServerError(code int, message string)
	OnPropertyChange(property string)
}

type SubscriptionListener interface {
	OnSubscription()
	OnSubscriptionError(code int, message string)
	OnUnsubscription()
	OnItemUpdate(update *ItemUpdate)
	OnItemLostUpdates(itemName string, itemPos int, lost int)
	OnClearSnapshot(itemName string, itemPos int)
	OnEndOfSnapshot(itemName string, itemPos int)
	OnCommandSecondLevelItemLostUpdates(lost int, key string)
	OnCommandSecondLevelSubscriptionError(code int, message string, key string)
	OnRealMaxFrequency(frequency string)
}

type ClientMessageListener interface {
	OnAbort(originalMessage string, sentOnNetwork bool)
	OnDeny(originalMessage string, code int, message string)
	OnDiscarded(originalMessage string)
	OnError(originalMessage string)
	OnProcessed(originalMessage string, response string)
}

// Error codes reported through OnServerError and OnSubscriptionError.
const (
	ErrorCodeNoTransport      = 2
	ErrorCodeSubscribeFailed  = 60
	ErrorCodeTransportFailure = 61
)
