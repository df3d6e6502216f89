package battle

import (
	"fmt"
	"math/rand/v2"
)

// RoomCodeLength is the number of digits in a join code.
const RoomCodeLength = 6

// CodeGenerator produces candidate room codes. Uniqueness is enforced by the store.
type CodeGenerator interface {
	Generate() string
}

// DigitCodes generates uniformly random six-digit codes, leading zeros included.
type DigitCodes struct{}

func (DigitCodes) Generate() string {
	return fmt.Sprintf("%0*d", RoomCodeLength, rand.IntN(1_000_000))
}

// ValidRoomCode reports whether code has the shape of a join code.
func ValidRoomCode(code string) bool {
	if len(code) != RoomCodeLength {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

var topics = []string{
	"A city built inside a giant tree",
	"The last library on Earth",
	"A detective who is also a cat",
	"Breakfast on the surface of Mars",
	"A dragon running a small bakery",
	"Time travel gone slightly wrong",
	"An underwater music festival",
	"A robot learning to paint",
	"The world's most dramatic chess match",
	"A haunted vending machine",
}

// RandomTopic picks a topic for rooms created without one.
func RandomTopic() string {
	return topics[rand.IntN(len(topics))]
}
