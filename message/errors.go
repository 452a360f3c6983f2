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

package message

import "errors"

var (
	// ErrUnknownMessageType signifies that the codec met a message type it has no decoder for.
	ErrUnknownMessageType = errors.New("unknown message type")

	// ErrMarshalBinaryFailed indicates a failure while encoding a message.
	ErrMarshalBinaryFailed = errors.New("failed to marshal message to binary format")

	// ErrUnmarshalBinaryFailed indicates a failure while decoding binary data into a message.
	ErrUnmarshalBinaryFailed = errors.New("failed to unmarshal binary data into message")

	// ErrInvalidMessageLength indicates that the binary data is empty.
	ErrInvalidMessageLength = errors.New("invalid message length: must be greater than zero")
)
