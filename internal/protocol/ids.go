package protocol

import (
	"fmt"
	"time"
)

// Identifiers are derived from the wall clock at nanosecond precision.
// Two ids minted in the same nanosecond collide; that window is a documented
// limitation of the format, not something this package papers over.

func NewRunID() string      { return fmt.Sprintf("run_%d", time.Now().UnixNano()) }
func NewThreadID() string   { return fmt.Sprintf("thread_%d", time.Now().UnixNano()) }
func NewMessageID() string  { return fmt.Sprintf("msg_%d", time.Now().UnixNano()) }
func NewToolCallID() string { return fmt.Sprintf("tool_%d", time.Now().UnixNano()) }
