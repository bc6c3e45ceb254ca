// Package cds talks to the Copernicus Climate Data Store API.
//
// The exported surface is deliberately small: a Retriever submits one
// request and blocks until the resulting file is on disk. The archive
// side queues requests and serves the result asynchronously, so a
// retrieval is a submit, a polling loop and a download, in that order.
//
// Credentials follow the conventions of the reference cdsapi client:
// the CDSAPI_URL and CDSAPI_KEY environment variables, falling back to
// a ~/.cdsapirc file with "url:" and "key:" lines. The key is the
// "<uid>:<secret>" pair issued by the CDS.
package cds
