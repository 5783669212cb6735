package canonical

// Collection NSIDs with dedicated shortcuts.
const (
	CollectionPost        = "app.bsky.feed.post"
	CollectionFeed        = "app.bsky.feed.generator"
	CollectionList        = "app.bsky.graph.list"
	CollectionStarterPack = "app.bsky.graph.starterpack"
)

// shortcut maps a display alias and its short forms to a collection.
type shortcut struct {
	alias      string
	short      []string
	collection string
	// requiresKey marks record-bearing collections
	requiresKey bool
}

// shortcuts is ordered; the first alias whose collection matches wins the
// reverse lookup.
var shortcuts = []shortcut{
	{alias: "post", short: []string{"p"}, collection: CollectionPost, requiresKey: true},
	{alias: "feed", short: []string{"f"}, collection: CollectionFeed, requiresKey: true},
	{alias: "lists", short: []string{"l", "list"}, collection: CollectionList, requiresKey: true},
	{alias: "starter-pack", short: []string{"s"}, collection: CollectionStarterPack},
}

var (
	expansions = map[string]string{}
	aliases    = map[string]string{}
	keyed      = map[string]bool{}
)

func init() {
	for _, s := range shortcuts {
		expansions[s.alias] = s.collection
		for _, k := range s.short {
			expansions[k] = s.collection
		}
		if _, ok := aliases[s.collection]; !ok {
			aliases[s.collection] = s.alias
		}
		keyed[s.collection] = s.requiresKey
	}
}

// ExpandCollection expands a shortcut into its collection NSID. Unknown
// values are returned unchanged.
func ExpandCollection(s string) string {
	if c, ok := expansions[s]; ok {
		return c
	}
	return s
}

// AliasFor returns the display alias of a collection, if one exists.
func AliasFor(collection string) (string, bool) {
	a, ok := aliases[collection]
	return a, ok
}

// RequiresRecordKey reports whether records of the collection must carry a key.
func RequiresRecordKey(collection string) bool {
	return keyed[collection]
}
