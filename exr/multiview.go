package exr

import "strings"

// Multi-view images store all views in one part. The multiView string
// vector lists the view names; the first entry is the default view.
// Channels of the default view use plain names, channels of other views
// carry the view as the last-but-one period-separated section of the
// channel name ("left.R", "layer.right.G").

// DefaultView returns the default view name, the first entry of the
// multiView attribute. Empty if views is empty.
func DefaultView(views []string) string {
	if len(views) == 0 {
		return ""
	}
	return views[0]
}

// ViewFromChannelName returns the view a channel belongs to. Channels
// whose name carries no recognized view section belong to the default
// view.
func ViewFromChannelName(channel string, views []string) string {
	sections := strings.Split(channel, ".")
	if len(sections) < 2 {
		return DefaultView(views)
	}
	candidate := sections[len(sections)-2]
	for _, v := range views {
		if v == candidate {
			return v
		}
	}
	return DefaultView(views)
}

// ChannelInView reports whether a channel belongs to the named view.
func ChannelInView(channel, view string, views []string) bool {
	return ViewFromChannelName(channel, views) == view
}

// ChannelsInView returns the channels of cl that belong to the named
// view, in channel-list order.
func ChannelsInView(cl *ChannelList, view string, views []string) []string {
	var out []string
	for _, name := range cl.Names() {
		if ChannelInView(name, view, views) {
			out = append(out, name)
		}
	}
	return out
}

// StripViewFromChannelName removes the view section from a channel name,
// yielding the name the channel would have in the default view.
func StripViewFromChannelName(channel, view string) string {
	sections := strings.Split(channel, ".")
	if len(sections) < 2 || sections[len(sections)-2] != view {
		return channel
	}
	kept := append(sections[:len(sections)-2], sections[len(sections)-1])
	return strings.Join(kept, ".")
}
