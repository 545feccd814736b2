package mcpserver

// SuburbLookupContract explains to LLM consumers how suburb labels are
// turned into lookup keys and what a canopy record looks like.
const SuburbLookupContract = `# YourView Suburb Lookup Contract

## Input

Pass the suburb the way a person would type it. The service derives a lookup
key before querying:

1. If the label contains a comma, only the text before the first comma is
   used (` + "`Richmond, VIC`" + ` becomes ` + "`Richmond`" + `).
2. Otherwise a trailing four-digit postcode and then a trailing state code
   (VIC, NSW, QLD, SA, WA, TAS, NT, ACT; any case) are removed
   (` + "`Brunswick VIC 3056`" + ` becomes ` + "`Brunswick`" + `).
3. Surrounding whitespace is trimmed. Nothing else is changed, so spelling
   and capitalisation must match the dataset.

## Output

` + "`get_canopy_cover`" + ` returns the first matching row exactly as stored in the
canopy dataset, as JSON. Its fields belong to the dataset and are not
reshaped.

- "not found" means the dataset has no row for the key.
- "unavailable" means the lookup failed; retrying later may succeed.
`
