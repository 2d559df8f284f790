package mcpserver

// ProjectFormatContract describes the saved project document so LLM
// consumers can read exports and reason about canvas nodes.
const ProjectFormatContract = `# AdCanvas Project Format

Projects are saved as UTF-8 JSON with the ` + "`" + `.banana` + "`" + ` extension. Plain
` + "`" + `.json` + "`" + ` files with the same shape are accepted on import.

## Document

` + "```" + `json
{
  "projectName": "Spring Launch",
  "nodes": [ ... ],
  "edges": [ ... ],
  "timestamp": "2026-03-01T12:00:00Z",
  "version": "1.0"
}
` + "```" + `

- ` + "`" + `nodes` + "`" + ` and ` + "`" + `edges` + "`" + ` are REQUIRED arrays (may be empty).
- ` + "`" + `version` + "`" + ` is "1.0". A missing version is read as "1.0"; any other value is rejected.
- A file that fails validation is rejected whole. Nothing is partially loaded.

## Nodes

` + "```" + `json
{
  "id": "concept-3",
  "type": "concept",
  "position": {"x": 100, "y": 500},
  "data": {
    "title": "Hero Shot",
    "content": "bottle on wet marble, morning light",
    "status": "idle",
    "parentProductId": "product-1",
    "parentProductImageUrl": "data:image/png;base64,...",
    "fromKnowledgeGraph": true
  }
}
` + "```" + `

1. **` + "`" + `type` + "`" + `** is one of ` + "`" + `product` + "`" + `, ` + "`" + `concept` + "`" + `, ` + "`" + `creative` + "`" + `.
2. **` + "`" + `id` + "`" + `** is unique within the document.
3. **` + "`" + `status` + "`" + `** is one of ` + "`" + `idle` + "`" + `, ` + "`" + `processing` + "`" + `, ` + "`" + `completed` + "`" + `, ` + "`" + `error` + "`" + `.
4. Products carry the uploaded image in ` + "`" + `imageUrl` + "`" + ` as a data URI.
5. Concepts carry the generation prompt in ` + "`" + `content` + "`" + `. ` + "`" + `fromKnowledgeGraph` + "`" + `
   set to true means the creative must contain no text overlays.
6. A concept made from a creative names it in ` + "`" + `parentGeneratedId` + "`" + ` and caches
   its image in ` + "`" + `parentGeneratedImageUrl` + "`" + `.
7. Creatives name their concept in ` + "`" + `parentConceptId` + "`" + ` and hold the result in
   ` + "`" + `imageUrl` + "`" + `.

## Edges

` + "```" + `json
{"id": "e-product-1-concept-3", "source": "product-1", "target": "concept-3"}
` + "```" + `

Both endpoints must name nodes in the same document. Edges point from an
ancestor to the node derived from it: product to concept, concept to
creative, creative to concept.

## Lineage

Every concept caches the product image used as the generation reference in
` + "`" + `parentProductImageUrl` + "`" + `. A concept made from a creative inherits that
value from the concept which produced the creative, so a chain of edits
keeps pointing at the product it started from.
`
