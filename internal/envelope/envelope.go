// Package envelope defines the wire message exchanged between a
// manager client and a vendor HAL server, and the small builder API
// used to construct outbound envelopes and reply skeletons.
//
// Every message on the wire is a JSON object carrying module, version,
// action, reqId, and at most one of params, Result, or SchemaInfo (a
// getSchema request, for one, carries none of them).
package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/rdkcentral/json-hal-rpc/internal/herrors"
)

// Action is the closed set of wire actions named in the spec.
type Action string

const (
	ActionGetParameters         Action = "getParameters"
	ActionGetParametersResponse Action = "getParametersResponse"
	ActionSetParameters         Action = "setParameters"
	ActionDeleteObject          Action = "deleteObject"
	ActionGetSchema             Action = "getSchema"
	ActionGetSchemaResponse     Action = "getSchemaResponse"
	ActionSubscribeEvent        Action = "subscribeEvent"
	ActionPublishEvent          Action = "publishEvent"
	ActionResult                Action = "result"
)

// Status is the closed set of result status strings.
type Status string

const (
	StatusSuccess      Status = "Success"
	StatusFailed       Status = "Failed"
	StatusNotSupported Status = "Not Supported"
)

// NotificationMode is the closed set of subscription notification
// types, both the wire string form and the internal mode enum.
type NotificationMode int

const (
	// OnChange delivers fire-and-forget; the publisher never waits.
	OnChange NotificationMode = iota
	// OnChangeSync blocks the publisher until the subscriber acks,
	// with no timeout.
	OnChangeSync
	// OnChangeSyncTimeout blocks the publisher until the subscriber
	// acks or a 10s ceiling elapses.
	OnChangeSyncTimeout
)

// ParseNotificationMode maps a wire notification-type string to a
// mode, defaulting unknown strings to OnChange (with ok=false so the
// caller can log a warning), per spec §4.5.
func ParseNotificationMode(s string) (mode NotificationMode, ok bool) {
	switch s {
	case "onChange":
		return OnChange, true
	case "onChangeSync":
		return OnChangeSync, true
	case "onChangeSyncTimeout":
		return OnChangeSyncTimeout, true
	default:
		return OnChange, false
	}
}

func (m NotificationMode) String() string {
	switch m {
	case OnChangeSync:
		return "onChangeSync"
	case OnChangeSyncTimeout:
		return "onChangeSyncTimeout"
	default:
		return "onChange"
	}
}

// ParamType is the closed set of parameter value types.
type ParamType string

const (
	TypeString        ParamType = "string"
	TypeInt            ParamType = "int"
	TypeBoolean        ParamType = "boolean"
	TypeLong           ParamType = "long"
	TypeUnsignedInt    ParamType = "unsignedInt"
	TypeUnsignedLong   ParamType = "unsignedLong"
	TypeHexBinary      ParamType = "hexBinary"
	TypeBase64         ParamType = "base64"
)

// Param is a single parameter entry: {name, type?, value?}. Value is
// carried as raw JSON so the concrete scalar shape (string, number,
// bool) chosen by the type is preserved exactly as received.
//
// subscribeEvent requests reuse this same shape with NotificationType
// set instead of Type/Value, per spec §4.5's {name, notificationType}.
type Param struct {
	Name             string          `json:"name"`
	Type             ParamType       `json:"type,omitempty"`
	Value            json.RawMessage `json:"value,omitempty"`
	NotificationType string          `json:"notificationType,omitempty"`
}

// NewParam builds a Param from a Go value, marshaling it to the raw
// JSON form the wire expects.
func NewParam(name string, typ ParamType, value interface{}) (Param, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return Param{}, fmt.Errorf("%w: marshal param %q: %v", herrors.ErrInvalidArgument, name, err)
	}
	return Param{Name: name, Type: typ, Value: raw}, nil
}

// NewSubscribeRequest builds a subscribeEvent request carrying the
// single {name, notificationType} param spec §4.5 describes.
func NewSubscribeRequest(module, version, reqID, event string, mode NotificationMode) Envelope {
	env := NewHeader(module, version, ActionSubscribeEvent, reqID)
	env.Params = []Param{{Name: event, NotificationType: mode.String()}}
	return env
}

// Result carries the outcome of a request.
type Result struct {
	Status Status `json:"Status"`
}

// SchemaInfo carries the location of the HAL schema file for
// getSchema replies.
type SchemaInfo struct {
	FilePath string `json:"FilePath"`
}

// Envelope is the top-level wire message.
type Envelope struct {
	Module  string  `json:"module"`
	Version string  `json:"version"`
	Action  Action  `json:"action"`
	ReqID   string  `json:"reqId"`

	Params     []Param     `json:"params,omitempty"`
	Result     *Result     `json:"Result,omitempty"`
	SchemaInfo *SchemaInfo `json:"SchemaInfo,omitempty"`
}

// NewHeader builds a bare envelope header with no body, mirroring the
// original json_hal_client_get_request_header entry point: callers
// that assemble a request incrementally can start from a header and
// attach params themselves.
func NewHeader(module, version string, action Action, reqID string) Envelope {
	return Envelope{Module: module, Version: version, Action: action, ReqID: reqID}
}

// NewRequest builds a request envelope carrying params. getSchema
// requests never carry a params array, per spec §4.3.
func NewRequest(module, version string, action Action, reqID string, params []Param) Envelope {
	env := NewHeader(module, version, action, reqID)
	if action != ActionGetSchema {
		env.Params = params
	}
	return env
}

// NewReplySkeleton builds the reply shape a dispatcher hands a
// handler, mapping the request action to its response action the way
// prepare_json_response_header does: getParameters ->
// getParametersResponse (empty params), getSchema -> getSchemaResponse
// (empty SchemaInfo), everything else -> result, with a Result
// defaulted to Success the handler only needs to touch to report
// something other than success; a returned handler error still
// overrides it to Failed.
func NewReplySkeleton(module, version string, action Action, reqID string) Envelope {
	switch action {
	case ActionGetParameters:
		env := NewHeader(module, version, ActionGetParametersResponse, reqID)
		env.Params = []Param{}
		return env
	case ActionGetSchema:
		env := NewHeader(module, version, ActionGetSchemaResponse, reqID)
		env.SchemaInfo = &SchemaInfo{}
		return env
	default:
		env := NewHeader(module, version, ActionResult, reqID)
		env.Result = &Result{Status: StatusSuccess}
		return env
	}
}

// NewResultReply builds a reply carrying only a Result status.
func NewResultReply(module, version, reqID string, status Status) Envelope {
	env := NewHeader(module, version, ActionResult, reqID)
	env.Result = &Result{Status: status}
	return env
}

// NewEvent builds a publishEvent envelope with a single-element params
// array, per spec §4.5.
func NewEvent(module, version, reqID, name string, value json.RawMessage) (Envelope, error) {
	p, err := NewParam(name, "", nil)
	if err != nil {
		return Envelope{}, err
	}
	p.Value = value
	p.Type = ""
	env := NewHeader(module, version, ActionPublishEvent, reqID)
	env.Params = []Param{p}
	return env, nil
}

// ParamCount returns the number of parameters carried by the envelope,
// mirroring json_hal_get_total_param_count.
func (e Envelope) ParamCount() int {
	return len(e.Params)
}

// ParamStatus returns the envelope's Result.Status and whether a
// Result was present at all, mirroring json_hal_get_result_status.
func (e Envelope) ParamStatus() (Status, bool) {
	if e.Result == nil {
		return "", false
	}
	return e.Result.Status, true
}

// Validate checks the minimal structural requirement every envelope
// must satisfy: a non-empty action and reqId.
func (e Envelope) Validate() error {
	if e.ReqID == "" {
		return fmt.Errorf("%w: envelope missing reqId", herrors.ErrInvalidArgument)
	}
	if e.Action == "" {
		return fmt.Errorf("%w: envelope missing action", herrors.ErrInvalidArgument)
	}
	return nil
}
