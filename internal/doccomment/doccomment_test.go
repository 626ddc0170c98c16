package doccomment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindTag(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		tag  string
		want string
	}{
		{"Simple return", "* @return Foo\n", "return", "Foo"},
		{"Block comment", "/**\n * @var int\n */", "var", "int"},
		{"Line comment marker", "/// @return string", "return", "string"},
		{"First occurrence wins", "* @return int\n* @return string\n", "return", "int"},
		{"Tag must be followed by whitespace", "* @returns Foo\n", "return", ""},
		{"Tag not at line start", "* see @return Foo\n", "return", ""},
		{"Empty value", "* @return\n", "return", ""},
		{"Union value kept whole", "* @return int|string $x\n", "return", "int|string"},
		{"No comment", "", "return", ""},
		{"Trailing tag without newline", "* @var", "var", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FindTag(tt.doc, tt.tag))
		})
	}
}

func TestFindAllTags(t *testing.T) {
	got := FindAllTags("* @param int $a\n * @param string $b\n", "param")
	assert.Equal(t, []string{"int", "string"}, got)

	got = FindAllTags("/**\n * Does things.\n * @param Foo $a\n * @return void\n * @param bool\n */", "param")
	assert.Equal(t, []string{"Foo", "bool"}, got)

	assert.Empty(t, FindAllTags("* nothing here", "param"))
}

func TestHasTagAndDeprecated(t *testing.T) {
	assert.True(t, HasTag("/**\n * @superglobal\n */", "superglobal"))
	assert.False(t, HasTag("/** @superglobals */", "superglobal"))
	assert.True(t, IsDeprecated("/** @deprecated since 2.0 */"))
	assert.False(t, IsDeprecated("/** stable */"))
}
