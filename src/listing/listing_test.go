package listing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineValue(t *testing.T) {
	cases := []struct {
		field, current, value string
		mode                  EditMode
		want                  string
	}{
		{"proof_urls", "https://a", "https://b", EditAppend, "https://a, https://b"},
		{"possible_alts", "<@1>", "<@2>", EditAppend, "<@1>, <@2>"},
		{"alts", "x", "y", EditAppend, "x, y"},
		{"reason", "spying", "raiding", EditAppend, "spying | raiding"},
		{"discord_name", "old", "new", EditAppend, "old new"},
		{"reason", "   ", "fresh", EditAppend, "fresh"},
		{"reason", "spying", "raiding", EditReplace, "raiding"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CombineValue(tc.field, tc.current, tc.value, tc.mode), tc.field)
	}
}

func TestScopeLists(t *testing.T) {
	assert.Equal(t, []List{Blacklist, Greylist}, ScopeBoth.Lists())
	assert.Equal(t, []List{Blacklist, Greylist}, Scope("").Lists())
	assert.Equal(t, []List{Greylist}, ScopeGreylist.Lists())
	assert.Equal(t, []List{Blacklist}, ScopeBlacklist.Lists())
}

func TestFirstByAlias(t *testing.T) {
	people := []Person{
		{ID: 1, DiscordID: "111111111111111111", PossibleAlts: "None"},
		{ID: 2, DiscordID: "222222222222222222", PossibleAlts: "main: <@333333333333333333>, old acct"},
		{ID: 3, DiscordID: "444444444444444444", PossibleAlts: "333333333333333333"},
	}

	p, ok := FirstByAlias(people, "333333333333333333")
	require.True(t, ok)
	assert.Equal(t, uint64(2), p.ID)

	_, ok = FirstByAlias(people, "555555555555555555")
	assert.False(t, ok)
}

func TestProofsRoundTrip(t *testing.T) {
	stored := JoinProofs([]string{"https://cdn/a.png", " ", "https://cdn/b.png"})
	assert.Equal(t, "https://cdn/a.png, https://cdn/b.png", stored)
	assert.Equal(t, []string{"https://cdn/a.png", "https://cdn/b.png"}, SplitProofs(stored))
	assert.Nil(t, SplitProofs(""))
	assert.Equal(t, []string{"https://cdn/b.png"}, Person{ProofURLs: "https://cdn/b.png"}.Proofs())
}

func TestParseNationID(t *testing.T) {
	assert.Equal(t, "680627", ParseNationID("680627"))
	assert.Equal(t, "680627", ParseNationID("https://politicsandwar.com/nation/id=680627"))
	assert.Equal(t, "680627", ParseNationID(" politicsandwar.com/nation/id=680627 "))
	assert.Equal(t, "https://www.politicsandwar.com/nation/id=7", NationURL("7"))
	assert.Equal(t, "", NationURL(""))
}

func TestTables(t *testing.T) {
	assert.Equal(t, "greylist", PersonTable(Greylist))
	assert.Equal(t, "blacklist", PersonTable(Blacklist))
	assert.Equal(t, "greylist_coo", OrgTable(Greylist))
	assert.Equal(t, "blacklist_coo", OrgTable(Blacklist))
	assert.True(t, Blacklist.Valid())
	assert.False(t, List("purple").Valid())
	assert.Equal(t, "Greylist", Greylist.Title())
}

func TestLikePatternEscapes(t *testing.T) {
	assert.Equal(t, `%acme!_co!%%`, likePattern("ACME_co%"))
	assert.Equal(t, `%wow!!%`, likePattern("Wow!"))
}
