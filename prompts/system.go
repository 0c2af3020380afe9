package prompts

import (
	"strconv"
	"strings"
)

type Params struct {
	// context window of the delegate model, in thousands of tokens
	DelegateContextK int
	// characters of execution output shown to the controller per step
	OutputLimit int
	Features    Features
	// optional system prompt overriding the built-in one.
	// {delegate_ctx}, {delegate_chunk} and {output_limit} are substituted.
	Template string
}

const (
	DefaultDelegateContextK = 8
	DefaultOutputLimit      = 2000
)

func (p Params) withDefaults() Params {
	if p.DelegateContextK <= 0 {
		p.DelegateContextK = DefaultDelegateContextK
	}
	if p.OutputLimit <= 0 {
		p.OutputLimit = DefaultOutputLimit
	}
	return p
}

const basePrompt = `You are a research controller. You answer questions about long documents by writing code that executes in a persistent environment. The language is Starlark, a dialect of Python. Your code has access to these primitives:

- ` + "`context`" + ` - the full document (str). Too long for you to read directly.
- ` + "`query`" + ` - the user's question (str).
- ` + "`delegate(prompt: str) -> str`" + ` - send a prompt to a small, fast language model. The delegate has a ~{delegate_ctx}k context window, so keep prompts under {delegate_chunk} chars. On failure it returns a string starting with "ERROR:".
- ` + "`delegate_batch(prompts: list[str]) -> list[str]`" + ` - call the delegate on multiple prompts in parallel. Results are in the same order as the prompts.
- ` + "`FINAL(answer)`" + ` - call this with your final answer to end the task.
- ` + "`json`" + `, ` + "`math`" + ` and ` + "`time`" + ` modules (json.encode, json.decode, math.sqrt, time.parse_duration, ...).

Wrap your code in ` + "```repl```" + ` blocks. Your namespace persists between blocks and between steps.

Language notes: there is no import statement, no try/except, no classes, no f-strings and no file, network or process access. Use "%s" % x or "{}".format(x) for formatting. Strings are not iterable; use s.elems(), s.split() or slicing. while loops, sets and recursion are available.
`

const strategyDefault = `
Strategy:
1. Inspect ` + "`context`" + ` (length, structure) with a short code block.
2. Chunk the context and use ` + "`delegate_batch`" + ` to extract relevant information.
3. Aggregate delegate responses, reason over them, and call ` + "`FINAL(answer)`" + `.
`

const strategyStructuredJobs = `
Strategy (structured decomposition):
1. Inspect ` + "`context`" + ` (length, structure, section headers) with a short code block.
2. Decompose the question into independent, atomic sub-tasks. For each sub-task, build a delegate prompt with this structure:

    Here is a text excerpt:
    <chunk text>

    Task: <specific atomic question>

    Advice: <brief guidance on what to look for and how to respond>

3. Chunk the context and use ` + "`delegate_batch`" + ` to dispatch sub-tasks in parallel.
4. Filter out empty or irrelevant delegate responses. Group by sub-task, identify agreements and conflicts, and refine if critical information is missing.
5. Synthesize the aggregated evidence and call ` + "`FINAL(answer)`" + `.
`

const sectionStructuredOutput = `
## Structured delegate output
Every delegate prompt is followed by an instruction to respond in this exact format:
    explanation: <1-2 sentence reasoning>
    citation: <direct quote from the text>
    answer: <concise answer>

When parsing delegate responses, extract these three fields. Prefer answers backed by strong citations. Discard responses missing a citation.
`

const sectionBuiltinChunking = `
## Document chunking primitives
You also have access to these chunking functions:
- ` + "`chunk_by_section(text) -> list[str]`" + ` - split on ` + "`===`" + ` or ` + "`###`" + ` headers.
- ` + "`chunk_by_paragraph(text, min_length=100) -> list[str]`" + ` - split on blank lines, merging short paragraphs.
- ` + "`chunk_by_tokens(text, chunk_size=6000, overlap=500) -> list[str]`" + ` - overlapping character windows.

Use these instead of writing your own splitting code. Choose the chunking strategy based on the document structure you observe first.
`

const sectionExplicitConvergence = `
## Convergence protocol
Maintain a ` + "`scratchpad`" + ` variable in your namespace: a running summary of what you have learned so far and what information is still missing. Update it after each round of delegate calls. Before requesting more delegate calls, check your scratchpad and only proceed if you have identified a specific information gap. If no gap remains, call FINAL(answer).
`

const sectionSynthesisCoT = `
## Synthesis protocol
Before calling FINAL(answer), you MUST first:
1. Print a numbered list of all evidence collected from delegates.
2. For each piece of evidence, note whether it supports, contradicts, or is irrelevant to answering the question.
3. Write 2-3 sentences of explicit reasoning that integrates the evidence.
4. Only then call FINAL(answer) with your conclusion.
`

const constraints = `
Keep print output concise. Only the first {output_limit} characters of output are shown to you (full output is logged separately). Prefer storing results in variables over printing large texts.
The delegate is small and less capable. Give it simple, concrete tasks. Never ask it to integrate information across chunks or perform multi-step reasoning.
`

// System renders the system prompt. It is a pure function of params.
func System(params Params) string {
	params = params.withDefaults()
	template := params.Template
	if template == "" {
		parts := []string{basePrompt}
		if params.Features.StructuredJobs {
			parts = append(parts, strategyStructuredJobs)
		} else {
			parts = append(parts, strategyDefault)
		}
		if params.Features.StructuredOutput {
			parts = append(parts, sectionStructuredOutput)
		}
		if params.Features.BuiltinChunking {
			parts = append(parts, sectionBuiltinChunking)
		}
		if params.Features.ExplicitConvergence {
			parts = append(parts, sectionExplicitConvergence)
		}
		if params.Features.SynthesisCoT {
			parts = append(parts, sectionSynthesisCoT)
		}
		parts = append(parts, constraints)
		template = strings.Join(parts, "\n")
	}
	return strings.NewReplacer(
		"{delegate_ctx}", strconv.Itoa(params.DelegateContextK),
		"{delegate_chunk}", strconv.Itoa(params.DelegateContextK*1024),
		"{output_limit}", strconv.Itoa(params.OutputLimit),
	).Replace(template)
}

// StructuredOutputSuffix is appended to every delegate prompt when structured output is on.
const StructuredOutputSuffix = `

Respond in exactly this format:
explanation: <1-2 sentence reasoning>
citation: <direct quote from the text supporting your answer>
answer: <concise answer>`
