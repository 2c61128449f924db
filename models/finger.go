package models

import (
	"fmt"
	"strings"
)

// FingerName identifies one of the ten fingers the scanner can capture
type FingerName string

const (
	RightThumb  FingerName = "right_thumb"
	RightIndex  FingerName = "right_index"
	RightMiddle FingerName = "right_middle"
	RightRing   FingerName = "right_ring"
	RightPinky  FingerName = "right_pinky"
	LeftThumb   FingerName = "left_thumb"
	LeftIndex   FingerName = "left_index"
	LeftMiddle  FingerName = "left_middle"
	LeftRing    FingerName = "left_ring"
	LeftPinky   FingerName = "left_pinky"
)

// FingerOrder is the order the wizard walks through the fingers
var FingerOrder = []FingerName{
	RightThumb, RightIndex, RightMiddle, RightRing, RightPinky,
	LeftThumb, LeftIndex, LeftMiddle, LeftRing, LeftPinky,
}

// ParseFingerName validates a finger identifier, accepting any letter case
func ParseFingerName(value string) (FingerName, error) {
	candidate := FingerName(strings.ToLower(strings.TrimSpace(value)))
	for _, finger := range FingerOrder {
		if finger == candidate {
			return finger, nil
		}
	}
	return "", fmt.Errorf("unknown finger name %q", value)
}

// Hand returns "left" or "right"
func (f FingerName) Hand() string {
	hand, _, _ := strings.Cut(string(f), "_")
	return hand
}

// FileName is the name given to the captured image
func (f FingerName) FileName() string {
	return string(f) + ".png"
}
