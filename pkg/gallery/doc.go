// Package gallery provides a bounded multi-tenant media store: a small,
// fixed number of tenants, each owning a capped gallery of photo assets,
// plus a singleton branding record.
//
// The Service orchestrates a BlobStore (asset bytes keyed by
// "tenantID/name") and a MetadataStore (tenant records and branding
// settings). Backends for both live in subpackages and are selected once at
// construction; the service never branches on the backend kind.
//
// Asset existence is derived from the BlobStore listing and is never mirrored
// into the MetadataStore. Tenant deletion removes blobs before the metadata
// record so an interrupted delete can always be completed by retrying it.
package gallery
