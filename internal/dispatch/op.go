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

package dispatch

import "strings"

// Op identifies a method-channel operation.
type Op int

const (
	OpUnknown Op = iota

	OpClientConnect
	OpClientDisconnect
	OpClientGetStatus
	OpClientSubscribe
	OpClientUnsubscribe
	OpClientGetSubscriptions
	OpClientSendMessage
	OpClientSetLoggerProvider
	OpClientAddCookies
	OpClientGetCookies
	OpClientCleanResources

	OpDetailsSetServerAddress

	OpOptionsSetForcedTransport
	OpOptionsSetRequestedMaxBandwidth
	OpOptionsSetReverseHeartbeatInterval

	OpSubGetCommandPosition
	OpSubGetKeyPosition
	OpSubSetRequestedMaxFrequency
	OpSubIsActive
	OpSubIsSubscribed
	OpSubValueByItemNameAndFieldName
	OpSubValueByItemNameAndFieldPos
	OpSubValueByItemPosAndFieldName
	OpSubValueByItemPosAndFieldPos
	OpSubCommandValueByItemNameAndFieldName
	OpSubCommandValueByItemNameAndFieldPos
	OpSubCommandValueByItemPosAndFieldName
	OpSubCommandValueByItemPosAndFieldPos

	opCount
)

var ops = map[string]map[string]Op{
	"LightstreamerClient": {
		"connect":           OpClientConnect,
		"disconnect":        OpClientDisconnect,
		"getStatus":         OpClientGetStatus,
		"subscribe":         OpClientSubscribe,
		"unsubscribe":       OpClientUnsubscribe,
		"getSubscriptions":  OpClientGetSubscriptions,
		"sendMessage":       OpClientSendMessage,
		"setLoggerProvider": OpClientSetLoggerProvider,
		"addCookies":        OpClientAddCookies,
		"getCookies":        OpClientGetCookies,
		"cleanResources":    OpClientCleanResources,
	},
	"ConnectionDetails": {
		"setServerAddress": OpDetailsSetServerAddress,
	},
	"ConnectionOptions": {
		"setForcedTransport":          OpOptionsSetForcedTransport,
		"setRequestedMaxBandwidth":    OpOptionsSetRequestedMaxBandwidth,
		"setReverseHeartbeatInterval": OpOptionsSetReverseHeartbeatInterval,
	},
	"Subscription": {
		"getCommandPosition":                    OpSubGetCommandPosition,
		"getKeyPosition":                        OpSubGetKeyPosition,
		"setRequestedMaxFrequency":              OpSubSetRequestedMaxFrequency,
		"isActive":                              OpSubIsActive,
		"isSubscribed":                          OpSubIsSubscribed,
		"getValueByItemNameAndFieldName":        OpSubValueByItemNameAndFieldName,
		"getValueByItemNameAndFieldPos":         OpSubValueByItemNameAndFieldPos,
		"getValueByItemPosAndFieldName":         OpSubValueByItemPosAndFieldName,
		"getValueByItemPosAndFieldPos":          OpSubValueByItemPosAndFieldPos,
		"getCommandValueByItemNameAndFieldName": OpSubCommandValueByItemNameAndFieldName,
		"getCommandValueByItemNameAndFieldPos":  OpSubCommandValueByItemNameAndFieldPos,
		"getCommandValueByItemPosAndFieldName":  OpSubCommandValueByItemPosAndFieldName,
		"getCommandValueByItemPosAndFieldPos":   OpSubCommandValueByItemPosAndFieldPos,
	},
}

// Lookup resolves an "Interface.method" name.
func Lookup(method string) (Op, bool) {
	iface, name, ok := strings.Cut(method, ".")
	if !ok {
		return OpUnknown, false
	}
	op, ok := ops[iface][name]
	return op, ok
}
