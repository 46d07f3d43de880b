package mcpserver

// RecordFormatContract describes the canonical entity record format that
// LLM consumers should follow when creating or referencing entities.
const RecordFormatContract = `# Othala Entity Record Contract

Every entity in the Othala graph is one JSON record.

## Structure

` + "```" + `json
{
  "id": "V1StGXR8_Z5jdHi6B-myT",
  "kind": "note",
  "name": "Weekly groceries",
  "created_at": "2025-01-15T09:30:00Z",
  "updated_at": "2025-01-20T14:00:00Z",
  "properties": {
    "content": "Buy milk. See [last week](user://aK3dVp0xQmZnR2sYw8LuE)."
  },
  "entities": ["childId1", "childId2"],
  "parents": {
    "parentId": { "created_at": "2025-01-15T09:30:00Z", "updated_at": "2025-01-15T09:30:00Z" }
  }
}
` + "```" + `

## Rules

1. **Kinds** are: ` + "`" + `note` + "`" + `, ` + "`" + `task` + "`" + `, ` + "`" + `collection` + "`" + `, ` + "`" + `chat` + "`" + `, ` + "`" + `media` + "`" + ` and ` + "`" + `self` + "`" + `.
   Only the first five may be created; exactly one ` + "`" + `self` + "`" + ` entity exists per graph.
2. **References** between entities use Markdown links with the internal
   scheme: ` + "`" + `[label](user://<entity-id>)` + "`" + `. Links to other schemes
   (https, mailto, ...) are plain hyperlinks and carry no graph meaning.
3. **Content** lives under ` + "`" + `properties.content` + "`" + ` and only for kinds that
   carry one (note, task, chat). Media entities carry ` + "`" + `properties.source` + "`" + `
   instead; collections have neither.
4. **Containment**: ` + "`" + `entities` + "`" + ` is the ordered list of member ids,
   ` + "`" + `parents` + "`" + ` maps parent ids to relation metadata. Containment is acyclic;
   an entity never contains itself, directly or transitively.
5. **Deletion and archival are flags**, not removals. A record with
   ` + "`" + `"deleted": true` + "`" + ` still exists and can be restored.
6. **Tasks** carry ` + "`" + `properties.completed` + "`" + ` (bool) and optional
   ` + "`" + `properties.due_at` + "`" + `; completing sets ` + "`" + `properties.completed_at` + "`" + `.
7. **Ids are opaque.** Never invent ids; obtain them from search or read
   tools.
`
