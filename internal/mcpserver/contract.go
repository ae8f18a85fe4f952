package mcpserver

// SectionTypesGuide describes how page sections are written in the content
// source so that component selection picks a good match.
const SectionTypesGuide = `# Sitesmith Section Types

Every page is a list of sections in page order. Each section has a name, a
section type, an optional description and an optional component override.
The selector scores every registered component against the section and
picks the highest total.

## Section types

| Section type (any of) | Category |
|---|---|
| hero | hero |
| header | header |
| feature, features | feature |
| content, content block | content |
| card grid, cards, services, products, catalog | card-grid |
| cta, call to action | cta |
| testimonial, testimonials, quote | testimonial |
| logo wall, logos, partners, clients | logo-wall |
| pricing, plans | pricing |
| faq, questions, accordion | faq |
| footer | footer |
| navigation, toc | navigation |
| link list, links, resources | link-list |

Types are case-insensitive and whitespace becomes a hyphen, so "Call to
Action" and "call-to-action" are the same. Unknown types still work but only
match components of exactly that category.

## Item counts

Put the number of items in the name or description, followed by a noun:
"3 core services", "4 pricing tiers", "6 team members". Components built for
that many items score higher. A Content Count property overrides the text.

## Placement

The first section is page-top, the second after-hero and the last two are
page-bottom; everything else is mid-page. Components declare where they fit
and are penalised when placed elsewhere.

## Variety

The same component is not chosen twice in a row if an alternative exists,
and components already used several times on the site score lower.

## Overrides

Set the component override (the Carbon Component property) to a component id
from list_components to bypass scoring. Unknown ids are ignored.
`
