// Package protocol defines the connector protocol messages exchanged with
// the ingestion host. Every command writes its result to stdout as one JSON
// message per line.
package protocol

import (
	"github.com/goccy/go-json"
)

// Type tags a protocol message.
type Type string

const (
	TypeSpec             Type = "SPEC"
	TypeConnectionStatus Type = "CONNECTION_STATUS"
	TypeCatalog          Type = "CATALOG"
	TypeRecord           Type = "RECORD"
	TypeLog              Type = "LOG"
	TypeTrace            Type = "TRACE"
)

// Message is the envelope written for every protocol line. Exactly one
// payload field is set, matching Type.
type Message struct {
	Type             Type                    `json:"type"`
	Spec             *ConnectorSpecification `json:"spec,omitempty"`
	ConnectionStatus *ConnectionStatus       `json:"connectionStatus,omitempty"`
	Catalog          *Catalog                `json:"catalog,omitempty"`
	Record           *Record                 `json:"record,omitempty"`
	Log              *Log                    `json:"log,omitempty"`
	Trace            *Trace                  `json:"trace,omitempty"`
}

// ConnectorSpecification describes the configuration a source accepts.
type ConnectorSpecification struct {
	DocumentationURL string `json:"documentationUrl,omitempty"`

	// ConnectionSpecification is a JSON schema for the config file.
	ConnectionSpecification json.RawMessage `json:"connectionSpecification"`

	SupportsIncremental bool `json:"supportsIncremental"`
}

// Status is the outcome of a connection check.
type Status string

const (
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// ConnectionStatus reports a connection check.
type ConnectionStatus struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// SyncMode is how a stream is read.
type SyncMode string

const (
	SyncModeFullRefresh SyncMode = "full_refresh"
	SyncModeIncremental SyncMode = "incremental"
)

// Stream is one discoverable data set.
type Stream struct {
	Name               string          `json:"name"`
	JSONSchema         json.RawMessage `json:"json_schema"`
	SupportedSyncModes []SyncMode      `json:"supported_sync_modes"`
}

// Catalog lists the streams a source offers.
type Catalog struct {
	Streams []Stream `json:"streams"`
}

// Record carries one emitted data item.
type Record struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
	// EmittedAt is in Unix milliseconds.
	EmittedAt int64 `json:"emitted_at"`
}

// LogLevel is the level of a protocol log line.
type LogLevel string

const (
	LogFatal LogLevel = "FATAL"
	LogError LogLevel = "ERROR"
	LogWarn  LogLevel = "WARN"
	LogInfo  LogLevel = "INFO"
	LogDebug LogLevel = "DEBUG"
)

// Log is a log line forwarded to the host.
type Log struct {
	Level   LogLevel `json:"level"`
	Message string   `json:"message"`
}

// FailureType distinguishes user-fixable failures from connector faults.
type FailureType string

const (
	FailureSystem FailureType = "system_error"
	FailureConfig FailureType = "config_error"
)

// Trace reports a fatal error to the host.
type Trace struct {
	Type      string      `json:"type"`
	EmittedAt float64     `json:"emitted_at"`
	Error     *TraceError `json:"error,omitempty"`
}

// TraceError is the payload of an error trace.
type TraceError struct {
	Message         string      `json:"message"`
	InternalMessage string      `json:"internal_message,omitempty"`
	FailureType     FailureType `json:"failure_type"`
}
