package orchestrator

// #region imports
import (
	"fmt"

	"github.com/ixtech/aniota/lic-controller/internal/gate"
	"github.com/ixtech/aniota/lic-controller/internal/knowledge"
	"github.com/ixtech/aniota/lic-controller/internal/quadvec"
)

// #endregion

// #region templates

// template is the phrasing for one label in two registers.
type template struct {
	Young string // elementary, middle_school
	Older string // high_school, adult
}

// Templates holds the built-in follow-up phrasing per label.
var Templates = map[quadvec.Label]template{
	quadvec.Expand: {
		Young: "Nice work! Want to try a harder one?",
		Older: "You have this part. Try a more demanding version of the same idea.",
	},
	quadvec.Explore: {
		Young: "What else can you find here? Pick something new to look at.",
		Older: "Step sideways for a moment. What other idea sits next to this one?",
	},
	quadvec.Extend: {
		Young: "Where else could you use this?",
		Older: "Apply this somewhere else. Where does the same idea show up?",
	},
	quadvec.Review: {
		Young: "Let's look back at what you just did. What was the main step?",
		Older: "Go back over the last step. What made it work?",
	},
}

const (
	ownWordsText = "You pasted a few things in a row. Can you put it in your own words?"
	escapeText   = "I'm not sure what would help most right now. " +
		"Do you want to go deeper, try something new, use this somewhere else, or go back over it? " +
		"I'll start with %s unless you pick another."
	timeoutText = "I'm not sure yet and need a moment. " +
		"Which direction would you like to go: deeper, something new, use it elsewhere, or review?"
)

// escapeNames phrase each label the way the escape message offers it.
var escapeNames = map[quadvec.Label]string{
	quadvec.Expand:  "going deeper",
	quadvec.Explore: "something new",
	quadvec.Extend:  "using it elsewhere",
	quadvec.Review:  "going back over it",
}

// #endregion

// #region renderer

// TemplateRenderer renders follow-ups from Templates. Messages never hand
// over answers and are pitched at the learner's own grade tier.
type TemplateRenderer struct{}

// Render implements Renderer.
func (TemplateRenderer) Render(p Prompt) gate.Message {
	level := p.AgeTier
	if level == "" {
		level = knowledge.Elementary
	}
	msg := gate.Message{Tone: gate.ToneEncouraging, Level: level}

	switch {
	case hasTrigger(p.Triggers, TriggerTimeout):
		msg.Text = timeoutText
		msg.Tone = gate.ToneNeutral
		msg.AsksLearner = true
	case p.Tier.IsEscape():
		msg.Text = fmt.Sprintf(escapeText, escapeNames[p.Label])
		msg.Tone = gate.ToneNeutral
		msg.AsksLearner = true
	case hasTrigger(p.Triggers, TriggerClipboardBurst):
		msg.Text = ownWordsText
		msg.AsksLearner = true
	default:
		t := Templates[p.Label]
		msg.Text = t.Young
		if level.Rank() >= knowledge.HighSchool.Rank() {
			msg.Text = t.Older
		}
	}
	return msg
}

// #endregion

// #region helpers

func hasTrigger(triggers []string, want string) bool {
	for _, t := range triggers {
		if t == want {
			return true
		}
	}
	return false
}

// #endregion
