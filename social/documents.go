// Package social implements the write coordination protocol: the per-operation
// sagas that keep the graph store, the search index and the cache in agreement
// for account creation, post creation/update/deletion, like toggling, comments
// and profile updates.
package social

// Media is one uploaded media entry on a post document. PostID is patched in
// after the post vertex exists; it joins the entry back to the graph.
type Media struct {
	URL     string `json:"url"`
	Tag     string `json:"tag"`
	AltText string `json:"altText"`
	PostID  string `json:"postId"`
}

// PostDoc is the denormalized search-index projection of a post. The graph
// vertex holds only the join key (esId); all content lives here.
type PostDoc struct {
	PostID    string   `json:"postId"`
	UserID    string   `json:"userId"`
	UserName  string   `json:"userName"`
	Caption   string   `json:"caption"`
	Location  string   `json:"location"`
	Media     []Media  `json:"media"`
	Hashtags  []string `json:"hashtags"`
	Mentions  []string `json:"mentions"`
	Likes     int      `json:"likes"`
	Comments  int      `json:"comments"`
	Timestamp int64    `json:"timestamp"`
}

// ProfileDoc is the denormalized search-index projection of a user profile,
// identified by the same id the User vertex stores under profileId.
type ProfileDoc struct {
	UserID   string   `json:"userId"`
	UserName string   `json:"userName"`
	FullName string   `json:"fullName"`
	Bio      string   `json:"bio"`
	Gender   string   `json:"gender"`
	Pronouns string   `json:"pronouns"`
	Links    []string `json:"links"`
	Hashtags []string `json:"hashtags"`
	Mentions []string `json:"mentions"`
}
