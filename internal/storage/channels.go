package storage

import (
	"strings"

	"github.com/pacing-engine/internal/types"
)

// channelAliases maps vendor-specific channel labels, lowercased with
// whitespace collapsed, onto canonical channel tags. Warehouse rows carry
// whatever label the ingesting vendor used; only rows that normalize to a
// recognized category participate in pacing.
var channelAliases = map[string]types.Channel{
	"social":                    types.ChannelSocial,
	"meta":                      types.ChannelSocial,
	"facebook":                  types.ChannelSocial,
	"instagram":                 types.ChannelSocial,
	"tiktok":                    types.ChannelSocial,
	"tik tok":                   types.ChannelSocial,
	"pinterest":                 types.ChannelSocial,
	"snapchat":                  types.ChannelSocial,
	"paid social":               types.ChannelSocial,
	"display":                   types.ChannelProgrammaticDisplay,
	"programmatic display":      types.ChannelProgrammaticDisplay,
	"programmatic + display":    types.ChannelProgrammaticDisplay,
	"programmatic_display":      types.ChannelProgrammaticDisplay,
	"video":                     types.ChannelProgrammaticVideo,
	"programmatic video":        types.ChannelProgrammaticVideo,
	"programmatic + video":      types.ChannelProgrammaticVideo,
	"programmatic_video":        types.ChannelProgrammaticVideo,
	"youtube":                   types.ChannelProgrammaticVideo,
	"search":                    types.ChannelSearch,
	"paid search":               types.ChannelSearch,
	"sem":                       types.ChannelSearch,
	"google search":             types.ChannelSearch,
	"google ads":                types.ChannelSearch,
}

// NormalizeChannel maps a vendor channel label onto a canonical channel tag.
// The second return value is false for unrecognized labels, which are dropped
// from pacing and counted for diagnostics.
func NormalizeChannel(label string) (types.Channel, bool) {
	key := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(label))), " ")
	channel, ok := channelAliases[key]
	return channel, ok
}
