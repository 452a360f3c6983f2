// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package nats

import (
	"crypto/tls"
	"time"

	"github.com/cfengine/cfengine/internal/validation"
)

const (
	// DefaultSubjectPrefix is the prefix of the partition subjects
	DefaultSubjectPrefix = "cf"
	// DefaultBufferSize is the number of messages a consumer buffers between polls
	DefaultBufferSize = 4096
	// DefaultMaxRetries is the number of connection attempts
	DefaultMaxRetries = 5
	// DefaultReconnectWait is the pause between reconnections
	DefaultReconnectWait = 2 * time.Second
)

// Config represents the NATS queue configuration
type Config struct {
	// NatsServer defines the nats server in the format nats://host:port
	NatsServer string
	// SubjectPrefix is prepended to the partition subjects: <prefix>.<topic>.<partition>
	SubjectPrefix string
	// ClientName is reported to the server
	ClientName string
	// BufferSize is the number of messages a consumer buffers between polls
	BufferSize int
	// MaxRetries is the number of connection attempts
	MaxRetries int
	// ReconnectWait is the pause between reconnections
	ReconnectWait time.Duration
	// TLS enables TLS when set
	TLS *tls.Config
}

// Validate checks whether the given configuration is valid
func (x Config) Validate() error {
	return validation.New(validation.FailFast()).
		AddValidator(validation.NewEmptyStringValidator("NatsServer", x.NatsServer)).
		AddAssertion(x.BufferSize >= 0, "the [BufferSize] must not be negative").
		AddAssertion(x.MaxRetries >= 0, "the [MaxRetries] must not be negative").
		Validate()
}

func (x *Config) setDefaults() {
	if x.SubjectPrefix == "" {
		x.SubjectPrefix = DefaultSubjectPrefix
	}
	if x.ClientName == "" {
		x.ClientName = "cfengine"
	}
	if x.BufferSize == 0 {
		x.BufferSize = DefaultBufferSize
	}
	if x.MaxRetries == 0 {
		x.MaxRetries = DefaultMaxRetries
	}
	if x.ReconnectWait <= 0 {
		x.ReconnectWait = DefaultReconnectWait
	}
}
