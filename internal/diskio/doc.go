// Package diskio implements the I/O handle and I/O pool consumed services: file-backed
// readers for physical-volume images, and a small indexed pool that lets a Volume
// address several physical volumes of a volume group by index.
package diskio
