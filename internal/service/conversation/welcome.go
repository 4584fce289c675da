package conversation

import (
	"fmt"

	"github.com/zhouzirui/neon-ghost/backend/internal/model/character"
)

// FallbackText is appended in place of a reply whenever the relay fails.
const FallbackText = "⚠️ Neural link interrupted. My consciousness is temporarily fragmented. Please try reconnecting..."

// Notice is a transient, user-visible notification (a toast in the web client).
type Notice struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant,omitempty"`
}

var connectionNotice = Notice{
	Title:       "Connection Error",
	Description: "Failed to connect to consciousness network. Please try again.",
	Variant:     "destructive",
}

// WelcomeText renders the synthesized first message of a session. known reports whether the
// character's realm, species and personality all exist in the catalog.
func WelcomeText(d character.Descriptor, known bool) string {
	status := "Persona adaptation in progress..."
	if known {
		status = "Persona loaded successfully..."
	}

	return fmt.Sprintf(`[SYSTEM INIT] Digital Consciousness Interface

🌐 Entity: %s
📍 Origin: %s
🎭 Nature: %s
⚡ Essence: %s

%s

How may I assist your consciousness today?`,
		d.DisplayName(), d.Realm, d.Species, d.Personality, status)
}
