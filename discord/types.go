package discord

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// DiscordCreation is the discord epoch in milliseconds.
const DiscordCreation = 1420070400000

var null = []byte("null")

// Snowflake is a discord id. It is sent as a string but may be received as either.
type Snowflake int64

func (s *Snowflake) IsNil() bool {
	return *s == 0
}

func (s *Snowflake) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || bytes.Equal(b, null) {
		return nil
	}

	if b[0] == '"' && len(b) >= 2 {
		b = b[1 : len(b)-1]
	}

	i, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("failed to unmarshal snowflake: %w", err)
	}

	*s = Snowflake(i)

	return nil
}

func (s Snowflake) MarshalJSON() ([]byte, error) {
	return strconv.AppendQuote(nil, strconv.FormatInt(int64(s), 10)), nil
}

func (s Snowflake) String() string {
	return strconv.FormatInt(int64(s), 10)
}

// Time returns the creation time of the Snowflake.
func (s Snowflake) Time() time.Time {
	msec := (int64(s) >> 22) + DiscordCreation

	return time.UnixMilli(msec)
}
