// Package publish packages a finished dataset and uploads it to S3.
//
// Archive writes a ZIP whose entries are compressed with Zstandard (ZIP
// method 93) except for JPEG and PNG frames, which are stored as-is. A
// manifest.json lists every dataset file with its size and SHA-256 digest.
// Publisher uploads either the archive or every file individually under
// s3://<bucket>/<prefix>/<run-id>/.
package publish
