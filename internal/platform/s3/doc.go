// Package s3 implements the Airnode storage gateway on Amazon S3.
//
// One bucket per AWS account holds every Airnode deployment. Buckets are
// created with default AES256 server-side encryption and with all public
// access blocked. Versioned objects and delete markers are drained before a
// bucket is deleted.
package s3
