package mcpserver

// BookmarkRules documents how submitted bookmarks are normalized, so LLM
// consumers can predict what will be stored.
const BookmarkRules = `# linkshelf bookmark rules

Every bookmark has a title, a url and a category. The server normalizes
submissions before storing them:

1. **title** is required and trimmed. A blank title is rejected.
2. **url** is required and trimmed. When it does not start with ` + "`" + `http://` + "`" + ` or
   ` + "`" + `https://` + "`" + `, ` + "`" + `https://` + "`" + ` is prepended verbatim. Hosts are not validated.
3. **category** is optional. Blank or whitespace-only values become ` + "`" + `Uncategorized` + "`" + `.
4. **ids** are assigned by the store and never change. Use ` + "`" + `list_bookmarks` + "`" + ` to
   find them before calling ` + "`" + `update_bookmark` + "`" + ` or ` + "`" + `delete_bookmark` + "`" + `.
5. Listings are newest first. The category filter ` + "`" + `All` + "`" + ` lists everything.

Every write appears on the live change feed, so open browser tabs and ` + "`" + `watch` + "`" + `
sessions update without reloading.
`
