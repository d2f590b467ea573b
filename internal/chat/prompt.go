package chat

// VisionPrompt is prepended to the system prompt of turns that carry a captured frame.
const VisionPrompt = `IMPORTANT: You have FULL VISION CAPABILITIES. You CAN see images. An image from the user's video call is attached to this message.

Your task:
1. ALWAYS describe what you see in the image
2. NEVER say you cannot see or are text-only
3. Be specific about people, objects, and activities visible
4. Relate what you see to the user's question

If the image is dark, blurry, or unclear, describe that - but NEVER claim you lack vision.`

// MathInstruction asks the model for LaTeX math, which the panel typesets and the voice reads out.
const MathInstruction = `When responding with mathematical expressions:
- Use LaTeX notation for all math: inline math with $...$ and display math with $$...$$
- Examples: $x^2$ for x squared, $\sqrt{x}$ for square root, $\frac{a}{b}$ for fractions
- Use proper symbols: $\pi$, $\theta$, $\sum$, $\int$, etc.
- NEVER write "superscript 2" - always write $x^2$`

// SystemPrompt composes the system prompt of a turn from the agent instructions.
func SystemPrompt(instructions string, withImage bool) string {
	if withImage {
		return VisionPrompt + "\n\n" + MathInstruction + "\n\n---\n\n" + instructions
	}
	return MathInstruction + "\n\n" + instructions
}
