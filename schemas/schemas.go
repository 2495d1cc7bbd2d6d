package schemas

// Well-known record collections. The server treats collections as opaque
// names; these exist for clients and tests that want the common ones.
const (
	ProfileNSID = "app.web5.actor.profile"
	PostNSID    = "app.web5.feed.post"
	LikeNSID    = "app.web5.feed.like"
	FollowNSID  = "app.web5.graph.follow"
)
