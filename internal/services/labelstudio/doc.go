// Package labelstudio talks to a Label Studio server to pull the annotation
// export and the source videos a conversion run needs.
//
// The client authenticates with the "Token" scheme, requests a JSON_MIN
// export snapshot (optionally with interpolated keyframes), pages through the
// project's tasks and streams each task's video into the local video
// directory. Files that already exist are left alone so repeated fetches are
// incremental. A failed video download is recorded and the remaining videos
// continue.
package labelstudio
