package mcpserver

// LinkFormatURI is the resource URI of LinkFormatContract.
const LinkFormatURI = "obridge://link-format"

// LinkFormatContract describes which text a bridge run rewrites and how.
const LinkFormatContract = `# obridge Link Format

A bridge run turns plain mentions of document names and declared aliases into
wikilinks. It only ever adds links; it never removes or edits existing ones.

## Declaring aliases

` + "```" + `markdown
---
aliases: [Apple Pie, Tarte]   # YAML list
---
` + "```" + `

A comma separated scalar (` + "`" + `aliases: Apple Pie, Tarte` + "`" + `) and the singular
key ` + "`" + `alias` + "`" + ` are accepted too. Every document is also linkable by its own
file name without ` + "`" + `.md` + "`" + `.

## Rewrite rules

1. Matching is literal and case sensitive.
2. A mention must not continue a word on either side: ` + "`" + `Apples` + "`" + ` does not match ` + "`" + `Apple` + "`" + `.
3. The longest alias wins: ` + "`" + `Apple Pie` + "`" + ` beats ` + "`" + `Apple` + "`" + `.
4. A mention equal to the document name becomes ` + "`" + `[[Name]]` + "`" + `; any other alias
   becomes ` + "`" + `[[Name|Alias]]` + "`" + `.
5. These spans are copied unchanged:
   - front matter
   - existing ` + "`" + `[[wikilinks]]` + "`" + ` and text directly next to ` + "`" + `[` + "`" + `, ` + "`" + `]` + "`" + ` or ` + "`" + `|` + "`" + `
   - ` + "`" + `[markdown](links)` + "`" + ` and bare URLs
   - inline code and fenced code blocks
6. A document does not link to itself unless ` + "`" + `addAliasToSelf` + "`" + ` is set.
7. When two documents declare the same alias, the one scanned last wins.

## Exclusions

Rules are keyed by document name (files) or path prefix (directories) and
carry two flags, both false by default:

- ` + "`" + `canLinkFromOutside` + "`" + `: other documents may link to this one.
- ` + "`" + `canBeLinked` + "`" + `: this document's body may be rewritten.

Running the pipeline twice produces no further changes.
`
