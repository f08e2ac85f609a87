// Package snapshot defines the render model shared by the browser, storage and
// API layers, and the Service that turns HTML content or live pages into PDF
// documents and ZIP bundles.
//
// A render flows through:
//   - option resolution: PDFOptions become a PrintLayout (inches) and
//     SnapshotOptions become a WaitPlan against the configured Defaults.
//   - cache lookup (optional) keyed by a digest of the resolved request.
//   - the Renderer, which drives headless Chrome through navigation,
//     network-idle detection and the scroll loop before printing.
//   - best-effort archival: blob upload, a Record row and a notification.
package snapshot
