package mcpserver

// StoreLayout describes the content tree so LLM consumers can address
// entities with the right key fields.
const StoreLayout = `# Folio Store Layout

Every stored entity is addressed by a key of four fields:

| field   | meaning                                             |
|---------|-----------------------------------------------------|
| module  | top-level package name, e.g. ` + "`numpy`" + `              |
| version | release string, e.g. ` + "`1.22`" + `                       |
| kind    | one of ` + "`module`, `docs`, `examples`, `assets`, `meta`" + ` |
| path    | qualified name or relative file path                |

On disk the key maps to ` + "`<module>/<version>/<kind>/<path>`" + `.

## Kinds

- **module**: API entities. ` + "`path`" + ` is the dotted qualified name
  (` + "`numpy.linalg.norm`" + `). These are the pages with navigation,
  backrefs and a reference graph.
- **docs**: narrative documents. ` + "`path`" + ` is the document name.
- **examples**: gallery examples. ` + "`path`" + ` is the example file name.
- **assets**: binary figures, served under ` + "`img/`" + `.
- **meta**: one ` + "`folio.yaml`" + ` per release carrying at least
  ` + "`version`" + ` and optionally ` + "`logo`" + `.

## References

Documents list the entities they reference. The reverse relation
(backrefs) is maintained by the index, so ` + "`get_backrefs`" + ` answers
"who mentions this entity". A reference whose module or version is ` + "`?`" + `
could not be resolved and has no page.

## Versions

Tools accepting a version also accept ` + "`*`" + `. It resolves to the only
known version of the module; when a module has several versions the call
fails and the caller must pick one (see ` + "`list_modules`" + `).
`
