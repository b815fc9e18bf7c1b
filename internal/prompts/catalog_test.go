package prompts

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogReplies(t *testing.T) {
	t.Parallel()
	c := Default()

	bug := c.Flow("create_bug")
	assert.Equal(t, "Sure, what is the bug title?", bug.Start)
	assert.Equal(t, "Got it! Please describe the bug.", bug.Ask["description"])
	assert.Equal(t, "Thanks! What is the severity? (Low, Medium, High)", bug.Ask["severity"])
	assert.Equal(t, "Understood. What are the steps to reproduce it?", bug.Ask["steps"])
	assert.Equal(t, "Bug report created successfully!", bug.Done)

	assert.Equal(t, "Sure, what is the requirement title?", c.Flow("create_requirement").Start)
	assert.Equal(t, "Who should this be assigned to?", c.Flow("create_query").Ask["assigned_to"])
	assert.Equal(t, "I am here to help!", c.DefaultReply)
	assert.Empty(t, c.Flow("create_widget").Start)
}

func TestUnreachableReplyIncludesError(t *testing.T) {
	t.Parallel()
	got := Default().UnreachableReply(errors.New("dial tcp: timeout"))
	assert.Equal(t, "Sorry, I couldn't reach the language model: dial tcp: timeout", got)
}

func TestClassifierUserPromptSubstitutes(t *testing.T) {
	t.Parallel()
	got := Default().ClassifierUserPrompt("the login button is broken", "ta")
	assert.Contains(t, got, `"""the login button is broken"""`)
	assert.Contains(t, got, "User language: ta")
	assert.NotContains(t, got, "{{")
}

func TestLoadOverlaysDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	override := `
flows:
  create_bug:
    start: "What went wrong?"
    ask:
      severity: "How bad is it?"
default_reply: "Hi there."
`
	require.NoError(t, os.WriteFile(path, []byte(override), 0o600))

	c, err := Load(path)
	require.NoError(t, err)

	bug := c.Flow("create_bug")
	assert.Equal(t, "What went wrong?", bug.Start)
	assert.Equal(t, "How bad is it?", bug.Ask["severity"])
	assert.Equal(t, "Got it! Please describe the bug.", bug.Ask["description"])
	assert.Equal(t, "Bug report created successfully!", bug.Done)
	assert.Equal(t, "Hi there.", c.DefaultReply)
	assert.Equal(t, "Okay! What is the query title?", c.Flow("create_query").Start)
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("flows: [not, a, map"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
