package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBoilerplate(t *testing.T) {
	t.Run("Empty content is noise", func(t *testing.T) {
		assert.True(t, IsBoilerplate(""))
		assert.True(t, IsBoilerplate("   "))
	})

	t.Run("Pure punctuation is noise", func(t *testing.T) {
		assert.True(t, IsBoilerplate("--- *** ---"))
		assert.True(t, IsBoilerplate("12345 ... !!!"))
	})

	t.Run("Install commands are noise", func(t *testing.T) {
		assert.True(t, IsBoilerplate("npm install shadcn-vue"))
		assert.True(t, IsBoilerplate("pip install django"))
		assert.True(t, IsBoilerplate("go get github.com/gin-gonic/gin"))
	})

	t.Run("Navigation link lists are noise", func(t *testing.T) {
		assert.True(t, IsBoilerplate("[Home](/)\n[About](/about)\n[Docs](/docs)"))
	})

	t.Run("Call to action remnants are noise", func(t *testing.T) {
		assert.True(t, IsBoilerplate("Click here to subscribe!"))
		assert.True(t, IsBoilerplate("Skip to main content"))
		assert.True(t, IsBoilerplate("Back to top"))
	})

	t.Run("Copyright is noise when short", func(t *testing.T) {
		assert.True(t, IsBoilerplate("© 2024 Example Corp. All rights reserved."))
		assert.True(t, IsBoilerplate("Terms of Service | Privacy Policy"))
	})

	t.Run("Real study content is NOT noise", func(t *testing.T) {
		assert.False(t, IsBoilerplate("Mitochondria produce most of the chemical energy a cell needs."))
		assert.False(t, IsBoilerplate("To install a new habit, repeat it daily for several weeks."))
	})
}

func TestCleanMarkdownNoise(t *testing.T) {
	t.Run("Strips edit links", func(t *testing.T) {
		input := "Some content\n[Edit this page](https://github.com/edit)\nMore content"
		result := CleanMarkdownNoise(input)
		assert.NotContains(t, result, "Edit this page")
		assert.Contains(t, result, "Some content")
		assert.Contains(t, result, "More content")
	})

	t.Run("Strips table of contents", func(t *testing.T) {
		input := "## Table of Contents\n- [Section 1](#section-1)\n- [Section 2](#section-2)\n\n## Section 1\nReal content here"
		result := CleanMarkdownNoise(input)
		assert.NotContains(t, result, "Table of Contents")
		assert.Contains(t, result, "Real content here")
	})

	t.Run("Preserves normal content", func(t *testing.T) {
		input := "# Cell Biology\n\nThe cell is the smallest unit of life."
		assert.Equal(t, input, CleanMarkdownNoise(input))
	})
}
