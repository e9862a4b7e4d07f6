/*Package directory is the data layer of the prompt library.

It stores categories, prompts, members and blog posts, and aggregates them
for the directory pages. Two Store implementations exist: a postgres store
for production and an in-memory store for tests and local development.

The Service composes store calls into the operations used by the web layer.
The most important one is BootData, which merges the category list with the
number of approved prompts per category and the three most recent approved
prompts:

	boot, err := service.BootData(ctx)

Category counters are recomputed on every call. The counter stored on the
category row is never used.

Listings are paginated. ListApproved returns one page together with the total
count and the number of pages. Pages beyond the last one are empty, but carry
correct counts; clamping the page is left to the caller.
*/
package directory
