// Package engine provides the document model for Inkwell: a versioned tree
// of typed nodes with a selection that stays valid as the tree changes.
//
// # Architecture
//
// The engine is built on several sub-packages:
//
//   - node: node variants, keys and the variant registry
//   - version: immutable versions and the copy-on-write pending overlay
//   - dirty: per-transaction dirty tracking for renderers
//   - selection: point and range values
//   - tracking: bounded retention of committed versions and named pins
//   - codec: JSON export and import of a full version
//
// The tree is an arena. Every node lives in a flat mapping from key to
// record; parent and sibling links are plain keys, and each element keeps
// its children as a doubly linked list bounded by first and last. Splicing,
// inserting and removing touch only the nodes next to the edit.
//
// # Transactions
//
// All mutation happens inside a Txn. Opening one while another is open
// fails immediately with ErrTransactionAlreadyOpen; there is no queueing.
//
//	e := engine.New()
//	_, err := e.Update(func(t *engine.Txn) error {
//		p, err := t.NewParagraph()
//		if err != nil {
//			return err
//		}
//		txt, err := t.NewText("Hello")
//		if err != nil {
//			return err
//		}
//		if err := t.Append(p, txt); err != nil {
//			return err
//		}
//		if err := t.Append(node.RootKey, p); err != nil {
//			return err
//		}
//		return t.Select(txt)
//	})
//
// The first write to a node in a transaction clones it into the pending
// version; later writes reuse that clone. Versions already committed are
// never modified, so a Reader obtained before a commit keeps seeing the
// same tree.
//
// Commit runs text normalization, drops nodes removed in the transaction,
// moves any selection point that no longer addresses a live node, and then
// publishes an Update carrying the new and previous versions together with
// the dirty element and leaf keys and the keys it deleted.
//
// # Errors
//
// Structural errors (ErrStructuralInvariant) poison the transaction: the
// failing call returns the error and Commit aborts. Other errors leave the
// transaction usable. Use errors.Is against the sentinel values.
//
// # Thread Safety
//
// Editor methods are safe for concurrent use. A Txn has a single writer
// and must not be shared between goroutines.
package engine
