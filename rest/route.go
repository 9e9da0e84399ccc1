package rest

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/WelcomerTeam/Toast/discord"
)

// Route is a method and a concrete path. The bucket key is derived once
// when the route is built.
type Route struct {
	Method string
	Path   string
	Bucket string
}

// NewRoute builds a route from a path template. Parameters are path escaped.
func NewRoute(method string, format string, params ...any) Route {
	escaped := make([]any, len(params))

	for i, param := range params {
		escaped[i] = url.PathEscape(fmt.Sprint(param))
	}

	path := fmt.Sprintf(format, escaped...)

	return Route{
		Method: method,
		Path:   path,
		Bucket: BucketKey(method, path),
	}
}

// Segments that make the id after them a major parameter, which discord
// rate limits separately.
var majorParameters = map[string]bool{
	"channels": true,
	"guilds":   true,
	"webhooks": true,
}

// BucketKey normalises a path into the key requests share a bucket on.
// Ids collapse to :id unless they follow a major parameter. Everything past
// a reactions segment shares one bucket.
func BucketKey(method string, path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	bucket := make([]string, 0, len(segments))

	for i, segment := range segments {
		if i > 0 && segments[i-1] == "reactions" {
			break
		}

		if isNumeric(segment) && (i == 0 || !majorParameters[segments[i-1]]) {
			bucket = append(bucket, ":id")
		} else {
			bucket = append(bucket, segment)
		}
	}

	return method + ":/" + strings.Join(bucket, "/")
}

func isNumeric(segment string) bool {
	if segment == "" {
		return false
	}

	for i := 0; i < len(segment); i++ {
		if segment[i] < '0' || segment[i] > '9' {
			return false
		}
	}

	return true
}

func isReactionRoute(bucket string) bool {
	return strings.Contains(bucket, "/reactions")
}

// Route families used by the client. Anything else can be built with NewRoute.

func GatewayBot() Route {
	return NewRoute(http.MethodGet, discord.EndpointGatewayBot)
}

func ChannelMessages(channelID discord.Snowflake) Route {
	return NewRoute(http.MethodGet, "/channels/%s/messages", channelID)
}

func CreateMessage(channelID discord.Snowflake) Route {
	return NewRoute(http.MethodPost, "/channels/%s/messages", channelID)
}

func ChannelMessage(method string, channelID, messageID discord.Snowflake) Route {
	return NewRoute(method, "/channels/%s/messages/%s", channelID, messageID)
}

func MessageReaction(method string, channelID, messageID discord.Snowflake, emoji string) Route {
	return NewRoute(method, "/channels/%s/messages/%s/reactions/%s/@me", channelID, messageID, emoji)
}

func GuildMember(method string, guildID, userID discord.Snowflake) Route {
	return NewRoute(method, "/guilds/%s/members/%s", guildID, userID)
}
